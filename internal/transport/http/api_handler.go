package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"sparks-quiz-service/internal/app"
	"sparks-quiz-service/internal/domain"
	"sparks-quiz-service/internal/generator"
)

// APIHandler exposes the four core operations as JSON endpoints.
type APIHandler struct {
	service *app.QuizService
}

func NewAPIHandler(service *app.QuizService) *APIHandler {
	return &APIHandler{service: service}
}

// Register wires the handler into the mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /quizzes", h.generateQuiz)
	mux.HandleFunc("POST /sessions", h.startSession)
	mux.HandleFunc("GET /sessions/{id}", h.getSession)
	mux.HandleFunc("POST /sessions/{id}/answers", h.submitAnswer)
	mux.HandleFunc("POST /sessions/{id}/complete", h.completeSession)
}

type generateQuizRequest struct {
	ExamSystemID     string             `json:"examSystemId"`
	LevelID          string             `json:"levelId"`
	SubjectID        string             `json:"subjectId"`
	Type             string             `json:"type"`
	TopicID          string             `json:"topicId,omitempty"`
	TermID           string             `json:"termId,omitempty"`
	QuestionCount    int                `json:"questionCount,omitempty"`
	Difficulty       string             `json:"difficulty,omitempty"`
	TimeLimitSeconds int                `json:"timeLimitSeconds,omitempty"`
	TopicWeights     map[string]float64 `json:"topicWeights,omitempty"`
}

type quizResponse struct {
	QuizID           string   `json:"quizId"`
	Type             string   `json:"type"`
	QuestionCount    int      `json:"questionCount"`
	Difficulty       string   `json:"difficulty"`
	TimeLimitSeconds int      `json:"timeLimitSeconds"`
	QuestionIDs      []string `json:"questionIds"`
}

func (h *APIHandler) generateQuiz(w http.ResponseWriter, r *http.Request) {
	var req generateQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	quiz, err := h.service.GenerateQuiz(r.Context(), generator.Params{
		ExamSystemID:  req.ExamSystemID,
		LevelID:       req.LevelID,
		SubjectID:     req.SubjectID,
		Type:          domain.QuizType(req.Type),
		TopicID:       req.TopicID,
		TermID:        req.TermID,
		QuestionCount: req.QuestionCount,
		Difficulty:    domain.Difficulty(req.Difficulty),
		TimeLimit:     time.Duration(req.TimeLimitSeconds) * time.Second,
		TopicWeights:  req.TopicWeights,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quizResponse{
		QuizID:           quiz.ID,
		Type:             string(quiz.Type),
		QuestionCount:    quiz.QuestionCount,
		Difficulty:       string(quiz.Difficulty),
		TimeLimitSeconds: int(quiz.TimeLimit / time.Second),
		QuestionIDs:      quiz.QuestionIDs,
	})
}

type startSessionRequest struct {
	QuizID string `json:"quizId"`
	UserID string `json:"userId"`
}

type sessionResponse struct {
	SessionID        string           `json:"sessionId"`
	QuizID           string           `json:"quizId"`
	State            string           `json:"state"`
	StartedAt        time.Time        `json:"startedAt"`
	TotalMarks       int              `json:"totalMarks"`
	TimeLimitSeconds int              `json:"timeLimitSeconds"`
	Questions        []clientQuestion `json:"questions"`
	Answered         []string         `json:"answered,omitempty"`
	Result           *domain.CompletionResult `json:"result,omitempty"`
}

// clientQuestion is the snapshot question as presented to clients: no correct
// flags and no explanation until the session is graded.
type clientQuestion struct {
	OrderIndex int            `json:"orderIndex"`
	QuestionID string         `json:"questionId"`
	Type       string         `json:"type"`
	Prompt     string         `json:"prompt"`
	Difficulty string         `json:"difficulty"`
	Marks      int            `json:"marks"`
	Choices    []clientChoice `json:"choices,omitempty"`
}

type clientChoice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (h *APIHandler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	started, err := h.service.StartSession(r.Context(), req.QuizID, req.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID:        started.SessionID,
		QuizID:           started.QuizID,
		State:            string(domain.SessionStateCreated),
		StartedAt:        started.StartedAt,
		TotalMarks:       started.Snapshot.TotalMarks,
		TimeLimitSeconds: int(started.Snapshot.TimeLimit / time.Second),
		Questions:        presentQuestions(started.Snapshot.Questions),
	})
}

func (h *APIHandler) getSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	answered := make([]string, 0, len(view.Answers))
	for _, a := range view.Answers {
		answered = append(answered, a.QuestionID)
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:        view.SessionID,
		QuizID:           view.QuizID,
		State:            string(view.State),
		StartedAt:        view.StartedAt,
		TotalMarks:       view.Snapshot.TotalMarks,
		TimeLimitSeconds: int(view.Snapshot.TimeLimit / time.Second),
		Questions:        presentQuestions(view.Snapshot.Questions),
		Answered:         answered,
		Result:           view.Result,
	})
}

func (h *APIHandler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var sub domain.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.service.SubmitAnswer(r.Context(), r.PathValue("id"), sub)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) completeSession(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.CompleteSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func presentQuestions(questions []domain.SnapshotQuestion) []clientQuestion {
	out := make([]clientQuestion, len(questions))
	for i, q := range questions {
		choices := make([]clientChoice, len(q.Choices))
		for j, c := range q.Choices {
			choices[j] = clientChoice{ID: c.ID, Text: c.Text}
		}
		out[i] = clientQuestion{
			OrderIndex: q.OrderIndex,
			QuestionID: q.QuestionID,
			Type:       string(q.Type),
			Prompt:     q.Prompt,
			Difficulty: string(q.Difficulty),
			Marks:      q.Marks,
			Choices:    choices,
		}
	}
	return out
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeDomainError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	var insufficient *domain.InsufficientQuestionsError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &insufficient):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateAnswer),
		errors.Is(err, domain.ErrSessionCompleted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrSnapshotIntegrity),
		errors.Is(err, domain.ErrChoiceNotFound):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

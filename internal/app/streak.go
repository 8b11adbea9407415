package app

import "time"

// StreakOutcome describes how a completion affects the user's daily streak.
type StreakOutcome int

const (
	// StreakResets starts the chain over at 1 (gap of more than a day, or no
	// prior activity).
	StreakResets StreakOutcome = iota
	// StreakUnchanged means the user already completed a session today.
	StreakUnchanged
	// StreakContinues extends yesterday's chain by one.
	StreakContinues
)

// StreakTransition is a pure function of (lastActivityDate, today): yesterday
// continues the streak, the same day leaves it unchanged, anything older (or
// never) resets it.
func StreakTransition(lastActivity, today time.Time) StreakOutcome {
	if lastActivity.IsZero() {
		return StreakResets
	}
	if sameDate(lastActivity, today) {
		return StreakUnchanged
	}
	if sameDate(lastActivity, today.AddDate(0, 0, -1)) {
		return StreakContinues
	}
	return StreakResets
}

// streakChange converts an outcome into the delta shipped with the completion
// event: +1 for a continued chain, 0 for same-day, 1 with reset=true when the
// chain restarts.
func streakChange(outcome StreakOutcome) (delta int, reset bool) {
	switch outcome {
	case StreakContinues:
		return 1, false
	case StreakUnchanged:
		return 0, false
	default:
		return 1, true
	}
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

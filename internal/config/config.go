package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	AMQP struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"amqp"`
	Quiz struct {
		MinQuestions     int    `yaml:"minQuestions"`
		MaxQuestions     int    `yaml:"maxQuestions"`
		DefaultQuestions int    `yaml:"defaultQuestions"`
		DefaultTimeLimit string `yaml:"defaultTimeLimit"`
		PoolCacheTTL     string `yaml:"poolCacheTTL"`
		ShuffleChoices   bool   `yaml:"shuffleChoices"`
	} `yaml:"quiz"`
	Rewards struct {
		MarksEasy         int `yaml:"marksEasy"`
		MarksMedium       int `yaml:"marksMedium"`
		MarksHard         int `yaml:"marksHard"`
		SparksEasy        int `yaml:"sparksEasy"`
		SparksMedium      int `yaml:"sparksMedium"`
		SparksHard        int `yaml:"sparksHard"`
		CompletionBonus   int `yaml:"completionBonus"`
		PerfectScoreBonus int `yaml:"perfectScoreBonus"`
		Grades            []struct {
			Min   int    `yaml:"min"`
			Grade string `yaml:"grade"`
		} `yaml:"grades"`
	} `yaml:"rewards"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty or
// malformed.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

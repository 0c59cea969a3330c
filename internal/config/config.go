package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port         string
	OutputDir    string
	DBPath       string
	RiskFreeRate float64
	FetchTimeout time.Duration
	OpenAIKey    string
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// Load reads configuration from the environment. OPENAI_API_KEY is optional;
// when empty the AI commentary section of reports is skipped.
func Load() Config {
	return Config{
		Port:         envOr("PORT", "9090"),
		OutputDir:    envOr("OUTPUT_DIR", "outputs"),
		DBPath:       envOr("DB_PATH", "data/analyzer.db"),
		RiskFreeRate: envFloat("RISK_FREE_RATE", 0.04),
		FetchTimeout: envDuration("FETCH_TIMEOUT", 15*time.Second),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
	}
}

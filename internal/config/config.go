package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type APIConfig struct {
	Addr        string
	DatabaseURL string
	AdminKey    string

	// ContentPath points at a YAML decision catalog and scenario deck.
	// Empty means the built-in content ships.
	ContentPath string

	TeamCount            int
	RoundDurationSeconds int

	AllowedOrigins []string
}

type CLIConfig struct {
	APIBaseURL string
	AdminKey   string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("BOARDROOM_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:                 addr,
		DatabaseURL:          strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AdminKey:             strings.TrimSpace(os.Getenv("BOARDROOM_ADMIN_KEY")),
		ContentPath:          strings.TrimSpace(os.Getenv("BOARDROOM_CONTENT_PATH")),
		TeamCount:            envIntDefault("BOARDROOM_TEAM_COUNT", 6),
		RoundDurationSeconds: envIntDefault("BOARDROOM_ROUND_SECONDS", 600),
		AllowedOrigins:       envListDefault("BOARDROOM_ALLOWED_ORIGINS", []string{"*"}),
	}
	if cfg.AdminKey == "" {
		return cfg, fmt.Errorf("BOARDROOM_ADMIN_KEY is required")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("BRD_API_BASE_URL", "http://localhost:8080"), "/"),
		AdminKey:   strings.TrimSpace(os.Getenv("BRD_ADMIN_KEY")),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envListDefault(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr string

	DBDriver string
	DBDSN    string

	AuthSecret   string
	TokenTTLHour int

	CORSOrigins []string

	// Optional periodic stuck-attempt sweep; 0 disables it and leaves
	// the sweep to the admin endpoint.
	ReconcileEveryMin int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:          addr,
		DBDriver:          envOr("DB_DRIVER", "sqlite"),
		DBDSN:             envOr("DB_DSN", ""),
		AuthSecret:        envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		TokenTTLHour:      envInt("TOKEN_TTL_HOURS", 8),
		CORSOrigins:       csvOr("CORS_ORIGINS", "http://localhost:3000"),
		ReconcileEveryMin: envInt("RECONCILE_EVERY_MIN", 0),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package logger

import (
	"io"
	"log/slog"
	"strings"
)

// Setup installs a pretty handler as the default logger. The returned level
// can be flipped at runtime.
func Setup(w io.Writer, debug bool) *slog.LevelVar {
	level := new(slog.LevelVar)
	SetDebug(level, debug)
	slog.SetDefault(slog.New(NewPrettyHandler(w, &slog.HandlerOptions{Level: level})))
	return level
}

func SetDebug(level *slog.LevelVar, debug bool) {
	if debug {
		level.Set(slog.LevelDebug)
		return
	}
	level.Set(slog.LevelInfo)
}

// Redact masks a credential for logging, keeping a short prefix.
func Redact(secret string) string {
	secret = strings.TrimSpace(strings.TrimPrefix(secret, "Bearer "))
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}

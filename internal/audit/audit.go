// Package audit emits one structured log entry per CLI command invocation:
// the command name, the config file in use, and the operational environment
// with secret values reduced to set/unset.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// auditVar is an environment variable included in the audit entry. Secret
// values are never logged, only their presence.
type auditVar struct {
	key    string
	secret bool
}

// auditVars is the ordered environment surface recorded on every command
// start. One table drives both the audit entry and SanitiseKey so a key
// cannot be secret in one place and plain in the other.
var auditVars = []auditVar{
	{"EMBEDDING_BACKEND", false},
	{"EMBEDDING_MODEL", false},
	{"EMBEDDING_DIMENSIONS", false},
	{"EMBEDDING_API_KEY", true},
	{"EMBEDDING_ENDPOINT", false},
	{"OLLAMA_HOST", false},
	{"OPENAI_API_KEY", true},
	{"AZURE_OPENAI_API_KEY", true},
	{"AZURE_OPENAI_ENDPOINT", false},
	{"DSLA_INDEX_PATH", false},
	{"DSLA_INDEX_BACKEND", false},
	{"DSLA_MEMORY_DB", false},
	{"DSLA_HOST", false},
	{"DSLA_PORT", false},
	{"DSLA_API_KEY", true},
	{"LOG_LEVEL", false},
	{"LOG_FORMAT", false},
}

// LogCommandStart writes the audit entry for one command invocation.
func LogCommandStart(log *slog.Logger, command string, configPath string) {
	attrs := make([]slog.Attr, 0, len(auditVars)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	)
	for _, v := range auditVars {
		attrs = append(attrs, slog.String(v.key, SanitiseKey(v.key, os.Getenv(v.key))))
	}
	log.LogAttrs(context.TODO(), slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey renders an env var value for logging: secret keys collapse to
// "set"/"unset", everything else passes through with "unset" for empty.
func SanitiseKey(key, value string) string {
	for _, v := range auditVars {
		if v.key == key && v.secret {
			return presence(value)
		}
	}
	if value == "" {
		return "unset"
	}
	return value
}

// presence reports "set" for a non-empty value and "unset" otherwise.
func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

// sanitiseConfigPath renders the config path for logging, hiding the home
// directory and reporting "none" when no file was loaded.
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	if home, err := os.UserHomeDir(); err == nil && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}

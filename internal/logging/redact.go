package logging

import (
	"log/slog"
	"strings"
)

const redactedValue = "***REDACTED***"

var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"credential",
	"authorization",
}

func redact(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		v := a.Value.String()
		if v == "" {
			return a
		}
		// compact JWS header
		if strings.HasPrefix(v, "eyJ") && strings.Count(v, ".") == 2 {
			return slog.String(a.Key, redactedValue)
		}
		key := strings.ToLower(a.Key)
		for _, p := range sensitiveKeyPatterns {
			if strings.Contains(key, p) {
				return slog.String(a.Key, redactedValue)
			}
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redact(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

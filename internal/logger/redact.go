package logger

import (
	"log/slog"
	"regexp"
)

// Patterns scrubbed from every string attribute before it is written.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(access_token|refresh_token|authorization)["':=\s]*["']?([A-Za-z0-9\-._~+/]+=*)`),
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-._~+/]+=*`),
	regexp.MustCompile(`(?i)(api_key|client_secret|client_id|device_code)["':=\s]*["']?([A-Za-z0-9\-._~+/]{16,})`),
	regexp.MustCompile(`(https?://[^\s]*[?&](?:token|key|secret|code)=)([A-Za-z0-9\-._~+/]+=*)`),
	regexp.MustCompile(`\bya29\.[A-Za-z0-9\-._~+/]+`),
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
}

// Redact removes tokens, client secrets and e-mail addresses from s.
func Redact(s string) string {
	for _, pattern := range sensitivePatterns {
		s = pattern.ReplaceAllStringFunc(s, func(match string) string {
			sub := pattern.FindStringSubmatch(match)
			if len(sub) >= 3 {
				return sub[1] + "[REDACTED]"
			}
			return "[REDACTED]"
		})
	}
	return s
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(Redact(a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			a.Value = slog.StringValue(Redact(err.Error()))
		}
	}
	return a
}

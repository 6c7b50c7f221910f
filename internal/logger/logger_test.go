package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedact(t *testing.T) {
	cases := map[string]string{
		"header Bearer ya29.a0AfH6SMCabc":                  "header [REDACTED]",
		"refresh_token=1//04abcdefghijklmnop":               "refresh_token[REDACTED]",
		"contact tanaka@example.co.jp today":                "contact [REDACTED] today",
		"https://x.test/cb?code=4/0AbCdEf":                  "https://x.test/cb?code=[REDACTED]",
		"plain message with 田中 and no secrets":              "plain message with 田中 and no secrets",
		`{"client_secret":"GOCSPX-abcdefghijklmnopqrst"}`: `{"client_secret[REDACTED]"}`,
	}
	for in, want := range cases {
		assert.Equal(t, want, Redact(in), "input %q", in)
	}
}

func TestVerboseLoggingRedacts(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, true)
	t.Cleanup(func() { InitWithWriter(&buf, false) })

	Info("token refreshed", "header", "Bearer ya29.secretvalue", "error", errors.New("mail bob@example.com"))

	out := buf.String()
	assert.Contains(t, out, "token refreshed")
	assert.NotContains(t, out, "ya29.secretvalue")
	assert.NotContains(t, out, "bob@example.com")
}

func TestQuietModeOnlyPrintsErrors(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, false)

	Debug("debug")
	Info("info")
	Warn("warn")
	assert.Empty(t, buf.String())

	Error("boom", "error", errors.New("failed"))
	assert.Contains(t, buf.String(), "boom")
	assert.False(t, IsVerbose())
}

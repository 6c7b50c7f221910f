package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPClientAllowsLoopback(t *testing.T) {
	var agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	resp, err := NewHTTPClient(GoogleHosts...).Get(srv.URL)
	if err != nil {
		t.Fatalf("loopback request failed: %v", err)
	}
	resp.Body.Close()

	if agent != userAgent {
		t.Errorf("expected User-Agent %q, got %q", userAgent, agent)
	}
}

func TestHTTPClientRejectsOtherHosts(t *testing.T) {
	client := NewHTTPClient(GoogleHosts...)

	for _, url := range []string{
		"http://sheets.googleapis.com/v4/spreadsheets/x",
		"https://example.com/",
	} {
		_, err := client.Get(url)
		if err == nil {
			t.Errorf("expected %s to be rejected", url)
			continue
		}
		if !strings.Contains(err.Error(), "not allowed") {
			t.Errorf("unexpected error for %s: %v", url, err)
		}
	}
}

package security

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"
)

// GoogleHosts are the endpoints the board talks to.
var GoogleHosts = []string{
	"oauth2.googleapis.com",
	"sheets.googleapis.com",
	"www.googleapis.com",
}

const userAgent = "presence-board/1.0"

// NewHTTPClient returns a client that refuses plain-text traffic, refuses
// hosts outside allowedHosts (loopback excepted) and does not follow
// redirects.
func NewHTTPClient(allowedHosts ...string) *http.Client {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSClientConfig:       tlsConfig,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: &hostGuard{base: transport, allowed: allowedHosts},
		Timeout:   30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

type hostGuard struct {
	base    http.RoundTripper
	allowed []string
}

func (g *hostGuard) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := g.check(req); err != nil {
		return nil, err
	}
	req = req.Clone(req.Context())
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}
	return g.base.RoundTrip(req)
}

func (g *hostGuard) check(req *http.Request) error {
	host := req.URL.Hostname()
	if isLoopback(host) {
		return nil
	}
	if req.URL.Scheme != "https" {
		return fmt.Errorf("request URL not allowed: %s is not https", req.URL.Redacted())
	}
	if !slices.Contains(g.allowed, strings.ToLower(host)) {
		return fmt.Errorf("request URL not allowed: host %s", host)
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

package auth

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Client ID & Secret can be injected at build time:
//
//	go build -ldflags "-X github.com/bnema/presence-board/internal/auth.GoogleOAuthClientID=ID"
//
// or supplied through the environment / a client secrets file at runtime.
var (
	GoogleOAuthClientID     = ""
	GoogleOAuthClientSecret = ""
)

const (
	EnvClientID     = "PRESENCE_BOARD_CLIENT_ID"
	EnvClientSecret = "PRESENCE_BOARD_CLIENT_SECRET"

	ScopeCalendarReadonly = "https://www.googleapis.com/auth/calendar.readonly"
	ScopeSpreadsheets     = "https://www.googleapis.com/auth/spreadsheets"

	tokenFile = "token.enc"
)

// Scopes covers today's agenda and the shared roster sheet.
var Scopes = []string{ScopeCalendarReadonly, ScopeSpreadsheets}

// GoogleEndpoint is google.Endpoint with the device authorization URL pinned.
var GoogleEndpoint = oauth2.Endpoint{
	AuthURL:       google.Endpoint.AuthURL,
	TokenURL:      google.Endpoint.TokenURL,
	DeviceAuthURL: "https://oauth2.googleapis.com/device/code",
	AuthStyle:     oauth2.AuthStyleInParams,
}

package auth

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/oauth2"

	"github.com/bnema/presence-board/internal/logger"
	"github.com/bnema/presence-board/internal/nerdfonts"
)

const defaultVerificationURL = "https://www.google.com/device"

// Authenticate runs the OAuth 2.0 device flow, printing the user code to out,
// and stores the resulting token.
func (m *Manager) Authenticate(ctx context.Context, out io.Writer) error {
	ctx = m.ctx(ctx)

	logger.Info("device authorization started")
	da, err := m.oauth.DeviceAuth(ctx)
	if err != nil {
		return fmt.Errorf("failed to request device code: %w", err)
	}
	if da.DeviceCode == "" || da.UserCode == "" {
		return fmt.Errorf("invalid device code response: missing required fields")
	}

	displayAuthInstructions(out, da)

	tok, err := m.oauth.DeviceAccessToken(ctx, da)
	if err != nil {
		logger.Warn("device authorization failed", "error", err)
		return fmt.Errorf("authentication failed: %w", err)
	}
	logger.Info("device authorization complete", "has_refresh_token", tok.RefreshToken != "")

	return m.Save(tok)
}

func displayAuthInstructions(out io.Writer, da *oauth2.DeviceAuthResponse) {
	verification := da.VerificationURI
	if verification == "" {
		verification = defaultVerificationURL
	}

	fmt.Fprintf(out, "\n%s Device Authentication Required\n", nerdfonts.InfoCircle)
	fmt.Fprintf(out, "════════════════════════════════\n\n")
	fmt.Fprintf(out, "%s Please visit: %s\n", nerdfonts.Globe, verification)
	fmt.Fprintf(out, "%s Enter code: %s\n\n", nerdfonts.InfoCircle, da.UserCode)

	if !da.Expiry.IsZero() {
		minutes := int(time.Until(da.Expiry).Round(time.Minute) / time.Minute)
		fmt.Fprintf(out, "This code expires in %d minutes\n", minutes)
	}

	fmt.Fprintf(out, "%s Waiting for authorization...\n\n", nerdfonts.Timer)
}

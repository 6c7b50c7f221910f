package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/presence-board/internal/nerdfonts"
)

var (
	revokeFlag bool
	statusOnly bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Google authentication",
	Long: `Authenticate with Google using the OAuth 2.0 device flow.

The granted token covers the shared roster sheet and read-only calendar access.
It is stored encrypted in the cache directory and refreshed silently.

Examples:
  presence-board auth                    # Authenticate with device flow
  presence-board auth --status           # Check authentication status
  presence-board auth --revoke           # Clear local authentication`,
	RunE: runAuth,
}

func init() {
	authCmd.Flags().BoolVar(&revokeFlag, "revoke", false, "clear local authentication")
	authCmd.Flags().BoolVar(&statusOnly, "status", false, "check authentication status only")
}

func runAuth(cmd *cobra.Command, args []string) error {
	manager, err := newAuthManager()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if statusOnly {
		st := manager.Status()
		switch {
		case st.Valid:
			fmt.Fprintf(out, "%s Authentication: Valid (expires %s)\n", nerdfonts.CheckCircle, st.Expiry.Format(time.Kitchen))
		case st.Present && st.HasRefreshToken:
			fmt.Fprintf(out, "%s Authentication: Expired, will refresh on next use\n", nerdfonts.InfoCircle)
		default:
			fmt.Fprintf(out, "%s Authentication: Required\n", nerdfonts.ExclamationCircle)
		}
		return nil
	}

	if revokeFlag {
		fmt.Fprintf(out, "%s Clearing authentication...\n", nerdfonts.InfoCircle)
		if err := manager.ClearLocalToken(); err != nil {
			return fmt.Errorf("failed to clear authentication: %w", err)
		}
		fmt.Fprintf(out, "%s Authentication cleared successfully\n", nerdfonts.CheckCircle)
		return nil
	}

	if manager.HasValidToken() {
		fmt.Fprintf(out, "%s Already authenticated with Google\n", nerdfonts.CheckCircle)
		fmt.Fprintln(out, "Use --revoke to re-authenticate or --status to check status")
		return nil
	}

	fmt.Fprintf(out, "%s Starting device authentication...\n", nerdfonts.InfoCircle)
	fmt.Fprintln(out)

	if err := manager.Authenticate(cmd.Context(), out); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Fprintf(out, "%s Authentication successful!\n", nerdfonts.CheckCircle)
	fmt.Fprintln(out, "You can now run 'presence-board watch' from Waybar.")
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bnema/presence-board/internal/nerdfonts"
	"github.com/bnema/presence-board/internal/roster"
)

var offlineFlag bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the status of the board integration",
	Long: `Display the current status of presence-board including:
- Authentication status
- The board as last saved in the cache
- The board as it is on the sheet right now (unless --offline)

This command helps you check whether the shared sheet is reachable.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&offlineFlag, "offline", false, "only show cached data")
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	now := time.Now()

	fmt.Fprintln(out, "=== Authentication ===")
	manager, err := newAuthManager()
	if err != nil {
		fmt.Fprintf(out, "%s Authentication: Not configured (%v)\n", nerdfonts.ExclamationTriangle, err)
	} else {
		st := manager.Status()
		switch {
		case st.Valid:
			fmt.Fprintf(out, "%s Authentication: Valid (expires %s)\n", nerdfonts.CheckCircle, humanize.RelTime(st.Expiry, now, "ago", "from now"))
		case st.Present && st.HasRefreshToken:
			fmt.Fprintf(out, "%s Authentication: Expired, refresh token available\n", nerdfonts.InfoCircle)
		default:
			fmt.Fprintf(out, "%s Authentication: Required (run 'presence-board auth')\n", nerdfonts.ExclamationCircle)
		}
	}

	fmt.Fprintln(out, "\n=== Cache ===")
	boardCache := loadCache()
	fmt.Fprintf(out, "Cache file: %s\n", boardCache.GetFilePath())
	fmt.Fprintf(out, "Cached events: %d\n", boardCache.EventCount())
	if !boardCache.LastSync.IsZero() {
		fmt.Fprintf(out, "Last calendar sync: %s (%s)\n",
			boardCache.LastSync.Format("2006-01-02 15:04:05"),
			humanize.RelTime(boardCache.LastSync, now, "ago", "from now"))
	}

	members := cfg.RosterMembers()
	if state, savedAt, ok := boardCache.LastRoster(cfg.Roster.SpreadsheetID, members); ok {
		fmt.Fprintf(out, "Saved board from %s:\n", humanize.RelTime(savedAt, now, "ago", "from now"))
		printBoard(cmd, members, state)
	} else {
		fmt.Fprintln(out, "Saved board: none")
	}

	if offlineFlag || manager == nil {
		return nil
	}

	fmt.Fprintln(out, "\n=== Shared Sheet ===")
	if err := cfg.ValidateRoster(); err != nil {
		fmt.Fprintf(out, "%s %v\n", nerdfonts.ExclamationTriangle, err)
		return nil
	}
	fmt.Fprintf(out, "Spreadsheet: %s\n", cfg.Roster.SpreadsheetID)
	fmt.Fprintf(out, "Range: %s\n", cfg.Roster.Range)

	ctx, cancel := context.WithTimeout(cmd.Context(), agendaTimeout)
	defer cancel()

	token, err := manager.Token(ctx)
	if err != nil {
		fmt.Fprintf(out, "%s %s\n", nerdfonts.ExclamationCircle, authHint)
		return nil
	}
	adapter, err := newAdapter()
	if err != nil {
		return err
	}
	state, err := adapter.Read(ctx, token)
	if err != nil {
		fmt.Fprintf(out, "%s Read failed (%s): %v\n", nerdfonts.ExclamationTriangle, roster.KindOf(err), err)
		return nil
	}
	printBoard(cmd, members, state)
	return nil
}

func printBoard(cmd *cobra.Command, members []roster.Member, state roster.State) {
	present := 0
	for _, m := range members {
		if state[m].Present {
			present++
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", describeMember(m, state[m]))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  %d of %d in\n", present, len(members))
}

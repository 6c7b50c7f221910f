package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnema/presence-board/internal/auth"
	"github.com/bnema/presence-board/internal/logger"
	"github.com/bnema/presence-board/internal/nerdfonts"
	"github.com/bnema/presence-board/internal/roster"
)

var setCmd = &cobra.Command{
	Use:   "set <toggle|in|out|comment> <member> [comment]",
	Short: "Change one member's entry on the board",
	Long: `Read the board once, apply a single change and write it back.

Examples:
  presence-board set in 田中
  presence-board set toggle 2
  presence-board set comment 越川 14時戻り
  presence-board set comment 越川            # clear the comment`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSet,
}

func runSet(cmd *cobra.Command, args []string) error {
	c, err := parseCommand(strings.Join(args, " "), cfg.RosterMembers())
	if err != nil {
		return err
	}
	if c.action == actionRefresh || c.action == actionQuit {
		return fmt.Errorf("%s is only available in watch", args[0])
	}

	manager, err := newAuthManager()
	if err != nil {
		return err
	}
	session, err := openSession(manager)
	if err != nil {
		return fmt.Errorf("failed to start roster session: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), closeTimeout+agendaTimeout)
	defer cancel()

	if err := session.Load(ctx); err != nil {
		_ = session.Close(ctx)
		if roster.IsNotAuthorized(err) || auth.NeedsInteractive(err) {
			return fmt.Errorf("%s: %w", authHint, err)
		}
		return fmt.Errorf("failed to read the board: %w", err)
	}

	runErr := c.run(ctx, session)
	// Close writes a queued comment right away instead of waiting for the
	// debounce period.
	closeErr := session.Close(ctx)
	if runErr != nil {
		return fmt.Errorf("failed to update %s: %w", c.member, runErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to save comment for %s: %w", c.member, closeErr)
	}

	st := session.Snapshot()[c.member]
	logger.Debug("board updated", "member", string(c.member), "present", st.Present)
	fmt.Fprintln(cmd.OutOrStdout(), describeMember(c.member, st))
	return nil
}

func describeMember(m roster.Member, st roster.Status) string {
	symbol, label := nerdfonts.Circle, "away"
	if st.Present {
		symbol, label = nerdfonts.CheckCircle, "in"
	}
	line := fmt.Sprintf("%s %s is %s", symbol, m, label)
	if st.Comment != "" {
		line += fmt.Sprintf("  %s %s", nerdfonts.InfoCircle, strings.ReplaceAll(st.Comment, "\n", " / "))
	}
	return line
}

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/presence-board/internal/cache"
	"github.com/bnema/presence-board/internal/calendar"
	"github.com/bnema/presence-board/internal/config"
	"github.com/bnema/presence-board/internal/logger"
	"github.com/bnema/presence-board/internal/notifier"
	"github.com/bnema/presence-board/internal/presence"
	"github.com/bnema/presence-board/internal/waybar"
)

var (
	formatFlag    string
	agendaFlag    bool
	noTooltipFlag bool
)

const (
	refreshEvery  = time.Minute
	agendaTimeout = 30 * time.Second
	closeTimeout  = 10 * time.Second
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the board in sync and stream Waybar output",
	Long: `Poll the shared roster sheet and print one line of Waybar output every time
the board changes. Use it as a continuous custom module:

  "custom/presence": {
      "exec": "presence-board watch",
      "return-type": "json"
  }

Lines written to stdin edit the board:
  toggle <member>            flip presence
  in <member> / out <member> set presence
  comment <member> <text>    set the comment (\n for a line break)
  refresh                    poll now
  quit                       stop

Members can be given by name or by their 1-based column.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&formatFlag, "format", "json", "output format (json/text)")
	watchCmd.Flags().BoolVar(&agendaFlag, "agenda", false, "append today's calendar agenda to the tooltip")
	watchCmd.Flags().BoolVar(&noTooltipFlag, "no-tooltip", false, "remove tooltip field from JSON output")
}

// watcher owns everything the output loop touches. Only the loop goroutine
// reads or writes its fields.
type watcher struct {
	out          io.Writer
	session      *presence.Session
	cache        *cache.Cache
	notifier     *notifier.Notifier
	formatter    *waybar.OutputFormatter
	agenda       calendar.Agenda
	authNotified bool
}

func runWatch(cmd *cobra.Command, args []string) error {
	if formatFlag != "json" && formatFlag != "text" {
		return fmt.Errorf("unknown format: %s (supported: json, text)", formatFlag)
	}
	if noTooltipFlag && formatFlag != "json" {
		return fmt.Errorf("--no-tooltip flag can only be used with --format=json")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, err := newAuthManager()
	if err != nil {
		return err
	}
	session, err := openSession(manager)
	if err != nil {
		return fmt.Errorf("failed to start roster session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			logger.Warn("pending comment was not saved", "error", err)
		}
	}()

	w := &watcher{
		out:       cmd.OutOrStdout(),
		session:   session,
		cache:     loadCache(),
		notifier:  notifier.New(cfg.Notifications.Enabled),
		formatter: newFormatter(),
	}
	logger.Info("watching roster", "session", session.ID(), "members", len(session.Members()))
	if err := w.render(time.Now()); err != nil {
		return err
	}

	lines := readLines(cmd.InOrStdin())
	reloads := watchConfig()

	agendas := make(chan calendar.Agenda, 1)
	fetchAgenda := func() {
		if !agendaFlag {
			return
		}
		go func() {
			fetchCtx, cancel := context.WithTimeout(ctx, agendaTimeout)
			defer cancel()
			agenda, err := syncAgenda(fetchCtx, manager, w.cache, w.notifier, time.Now())
			if err != nil {
				logger.Warn("agenda refresh failed", "error", err)
			}
			select {
			case agendas <- agenda:
			default:
			}
		}()
	}
	fetchAgenda()

	ticker := time.NewTicker(refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case u, ok := <-session.Updates():
			if !ok {
				return nil
			}
			w.handle(u, time.Now())

		case err := <-session.Errors():
			logger.Warn("background write failed", "error", err)

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			c, err := parseCommand(line, session.Members())
			if err != nil {
				logger.Warn("ignoring input", "line", line, "error", err)
				continue
			}
			if c.action == actionQuit {
				return nil
			}
			go func() {
				if err := c.run(ctx, session); err != nil {
					logger.Warn("command failed", "line", line, "error", err)
				}
			}()
			continue

		case agenda := <-agendas:
			w.agenda = agenda

		case next := <-reloads:
			w.reload(next)

		case <-ticker.C:
			fetchAgenda()
		}

		if err := w.render(time.Now()); err != nil {
			return err
		}
	}
}

func (w *watcher) handle(u presence.Update, now time.Time) {
	switch u.Reason {
	case presence.UpdateLoaded, presence.UpdateWritten, presence.UpdateRolledBack:
		w.persist(now)
	case presence.UpdateRemote:
		w.persist(now)
		if cfg.Notifications.RemoteChanges {
			if err := w.notifier.SendRosterChanges(u.Changed.Sorted(), w.session.Snapshot()); err != nil {
				logger.Warn("failed to send notification", "error", err)
			}
		}
	}
	if u.Err != nil {
		logger.Debug("roster update carried an error", "reason", u.Reason.String(), "error", u.Err)
	}

	st := w.session.Status()
	if st.NeedsReauth && !w.authNotified {
		if err := w.notifier.SendAuthRequired(); err != nil {
			logger.Warn("failed to send notification", "error", err)
		}
	}
	w.authNotified = st.NeedsReauth
}

// persist keeps the last confirmed board for offline starts.
func (w *watcher) persist(now time.Time) {
	w.cache.SetRoster(cfg.Roster.SpreadsheetID, w.session.Members(), w.session.Snapshot(), now)
	if err := w.cache.Save(); err != nil {
		logger.Warn("failed to save cache", "error", err)
	}
}

func (w *watcher) board() waybar.Board {
	board := waybar.Board{
		Members:     w.session.Members(),
		State:       w.session.Snapshot(),
		Highlighted: w.session.Highlighted(),
		Status:      w.session.Status(),
	}
	if board.Status.Phase == presence.PhaseLoading {
		if state, savedAt, ok := w.cache.LastRoster(cfg.Roster.SpreadsheetID, board.Members); ok {
			board.State = state
			board.Stale = true
			board.Status.LastSync = savedAt
		}
	}
	return board
}

func (w *watcher) render(now time.Time) error {
	output := w.formatter.FormatBoard(w.board(), w.agenda, now)
	return printOutput(w.out, output)
}

// reload applies display settings from an edited config.toml. Roster
// settings take effect on the next start.
func (w *watcher) reload(next *config.Config) {
	w.formatter.SetMaxTooltipEvents(next.Display.MaxTooltipEvents)
	w.formatter.SetShowEndTime(next.Display.ShowEndTime)
	if !w.formatter.SetTheme(next.Display.Theme) {
		logger.Warn("unknown theme, using default", "theme", next.Display.Theme)
	}
	cfg.Display = next.Display
	cfg.Notifications.RemoteChanges = next.Notifications.RemoteChanges
	logger.Info("configuration reloaded", "path", next.Path())
}

func printOutput(out io.Writer, output waybar.WaybarOutput) error {
	if noTooltipFlag {
		output.Tooltip = ""
	}
	switch formatFlag {
	case "json":
		jsonOutput, err := waybar.FormatJSONOutput(output)
		if err != nil {
			return fmt.Errorf("failed to format JSON output: %w", err)
		}
		fmt.Fprintln(out, jsonOutput)
	case "text":
		fmt.Fprintln(out, waybar.FormatTextOutput(output))
	default:
		return fmt.Errorf("unknown format: %s (supported: json, text)", formatFlag)
	}
	return nil
}

// readLines streams stdin until EOF. Waybar usually gives us /dev/null, in
// which case the channel closes at once.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				lines <- line
			}
		}
	}()
	return lines
}

func watchConfig() <-chan *config.Config {
	reloads := make(chan *config.Config, 1)
	err := config.Watch(cfgDir, func(next *config.Config) {
		select {
		case reloads <- next:
		default:
		}
	}, func(err error) {
		logger.Warn("ignoring invalid configuration", "error", err)
	})
	if err != nil {
		logger.Debug("configuration will not be reloaded", "error", err)
	}
	return reloads
}

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bnema/presence-board/internal/presence"
	"github.com/bnema/presence-board/internal/roster"
)

type action int

const (
	actionToggle action = iota
	actionIn
	actionOut
	actionComment
	actionRefresh
	actionQuit
)

// command is one line typed on stdin of `watch`, or the arguments of `set`.
type command struct {
	action action
	member roster.Member
	text   string
}

var actions = map[string]action{
	"toggle":  actionToggle,
	"t":       actionToggle,
	"in":      actionIn,
	"out":     actionOut,
	"comment": actionComment,
	"c":       actionComment,
	"refresh": actionRefresh,
	"quit":    actionQuit,
	"q":       actionQuit,
}

// parseCommand reads "<verb> [member] [comment...]". Members are given by
// name or by their 1-based column. A literal \n in a comment is a line break.
func parseCommand(line string, members []roster.Member) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, fmt.Errorf("empty command")
	}

	act, ok := actions[strings.ToLower(fields[0])]
	if !ok {
		return command{}, fmt.Errorf("unknown command %q (toggle, in, out, comment, refresh, quit)", fields[0])
	}
	cmd := command{action: act}
	if act == actionRefresh || act == actionQuit {
		return cmd, nil
	}

	if len(fields) < 2 {
		return command{}, fmt.Errorf("%s needs a member", fields[0])
	}
	member, err := resolveMember(fields[1], members)
	if err != nil {
		return command{}, err
	}
	cmd.member = member

	if act == actionComment {
		rest := strings.TrimSpace(line)
		for _, f := range fields[:2] {
			rest = strings.TrimSpace(strings.TrimPrefix(rest, f))
		}
		cmd.text = strings.ReplaceAll(rest, `\n`, "\n")
	}
	return cmd, nil
}

func resolveMember(arg string, members []roster.Member) (roster.Member, error) {
	for _, m := range members {
		if string(m) == arg {
			return m, nil
		}
	}
	if i, err := strconv.Atoi(arg); err == nil && i >= 1 && i <= len(members) {
		return members[i-1], nil
	}
	return "", fmt.Errorf("unknown member %q", arg)
}

// run applies the command to the session. Comments only queue an edit; the
// write happens once typing has paused.
func (c command) run(ctx context.Context, session *presence.Session) error {
	switch c.action {
	case actionToggle:
		return session.Toggle(ctx, c.member)
	case actionIn:
		return session.SetPresent(ctx, c.member, true)
	case actionOut:
		return session.SetPresent(ctx, c.member, false)
	case actionComment:
		return session.EditComment(c.member, c.text)
	case actionRefresh:
		return session.Refresh(ctx)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/keshon/server-shh/internal/storage"
	"github.com/keshon/server-shh/pkg/cmd"
)

// session is the invocation payload of every CLI command.
type session struct {
	store storage.Store
	out   io.Writer
}

var errUsage = errors.New("wrong number of arguments")

func newRegistry() *cmd.Registry {
	reg := cmd.NewRegistry()
	for _, c := range []cmd.Command{listCommand{}, showCommand{}, removeCommand{}} {
		if err := reg.Register(c); err != nil {
			panic(err)
		}
	}
	return reg
}

func sessionOf(inv *cmd.Invocation) *session {
	return inv.Data.(*session)
}

type listCommand struct{}

func (listCommand) Name() string        { return "list" }
func (listCommand) Description() string { return "list configured guilds" }

func (listCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	s := sessionOf(inv)
	configs, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	if len(configs) == 0 {
		fmt.Fprintln(s.out, "no guilds configured")
		return nil
	}

	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GUILD\tCHANNEL\tEMOJI\tUPDATED")
	for _, c := range configs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.GuildID, c.ChannelID, c.Emoji, formatTime(c.UpdatedAt))
	}
	return w.Flush()
}

type showCommand struct{}

func (showCommand) Name() string        { return "show" }
func (showCommand) Description() string { return "show one guild's config: show <guildID>" }

func (showCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	if len(inv.Args) != 1 {
		return errUsage
	}
	s := sessionOf(inv)
	c, ok, err := s.store.Get(ctx, inv.Args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("guild %s is not configured", inv.Args[0])
	}
	fmt.Fprintf(s.out, "guild:   %s\nchannel: %s\nemoji:   %s\nupdated: %s\n",
		c.GuildID, c.ChannelID, c.Emoji, formatTime(c.UpdatedAt))
	return nil
}

type removeCommand struct{}

func (removeCommand) Name() string        { return "remove" }
func (removeCommand) Description() string { return "forget a guild's config: remove <guildID>" }

func (removeCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	if len(inv.Args) != 1 {
		return errUsage
	}
	s := sessionOf(inv)
	if err := s.store.Remove(ctx, inv.Args[0]); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "removed %s\n", inv.Args[0])
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

// Command cli inspects and edits the stored guild configs without starting
// the bot.
//
//	cli list
//	cli show <guildID>
//	cli remove <guildID>
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/keshon/server-shh/internal/config"
	"github.com/keshon/server-shh/internal/storage"
	"github.com/keshon/server-shh/pkg/cmd"
)

func main() {
	log.SetFlags(0)

	cfg, err := config.NewStorage()
	if err != nil {
		log.Fatal("[ERR] ", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// autosave off, the CLI flushes on close
	store, err := storage.Open(ctx, storage.Options{
		Driver:      cfg.Driver,
		FilePath:    cfg.Path,
		BackupCount: cfg.BackupCount,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		log.Fatal("[ERR] ", err)
	}

	code := run(ctx, newRegistry(), &session{store: store, out: os.Stdout}, os.Args[1:])
	if err := store.Close(); err != nil {
		log.Println("[ERR] Failed to close storage:", err)
		code = 1
	}
	os.Exit(code)
}

func run(ctx context.Context, reg *cmd.Registry, s *session, args []string) int {
	if len(args) == 0 {
		usage(reg, s)
		return 2
	}
	c := reg.Get(args[0])
	if c == nil {
		fmt.Fprintf(s.out, "unknown command %q\n\n", args[0])
		usage(reg, s)
		return 2
	}
	if err := c.Run(ctx, &cmd.Invocation{Args: args[1:], Data: s}); err != nil {
		fmt.Fprintln(s.out, "error:", err)
		return 1
	}
	return 0
}

func usage(reg *cmd.Registry, s *session) {
	fmt.Fprintln(s.out, "usage: cli <command> [args]")
	for _, c := range reg.All() {
		fmt.Fprintf(s.out, "  %-8s %s\n", c.Name(), c.Description())
	}
}

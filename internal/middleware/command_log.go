package middleware

import (
	"context"
	"log"
	"time"

	"github.com/keshon/server-shh/internal/command"
	"github.com/keshon/server-shh/pkg/cmd"
)

// WithCommandLogger logs every chat command with its outcome.
func WithCommandLogger() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			start := time.Now()
			err := c.Run(ctx, inv)

			m, ok := inv.Data.(*command.MessageContext)
			if !ok {
				return err
			}
			if err != nil {
				log.Printf("[ERR] Command %s by %s (%s) in guild %s failed after %v: %v",
					c.Name(), m.Username, m.UserID, m.GuildID, time.Since(start).Round(time.Millisecond), err)
				return err
			}
			log.Printf("[INFO] Command %s by %s (%s) in guild %s channel %s",
				c.Name(), m.Username, m.UserID, m.GuildID, m.ChannelID)
			return nil
		})
	}
}

// Default is the middleware stack every chat command runs behind.
func Default() []cmd.Middleware {
	return []cmd.Middleware{
		WithCommandLogger(),
		WithGuildOnly(),
		WithUserPermissionCheck(),
	}
}

// Package command holds the bot's chat commands and the context they run with.
package command

import (
	"context"

	"github.com/keshon/server-shh/internal/platform"
)

// MessageContext is the payload of a prefix command invocation. The chat
// adapter fills it from the triggering message.
type MessageContext struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	Username  string

	// Permissions are the author's effective permissions in ChannelID.
	Permissions int64

	Messages platform.Messages
}

// Reply posts content in the channel the command came from.
func (m *MessageContext) Reply(ctx context.Context, content string) error {
	_, err := m.Messages.Send(ctx, m.ChannelID, content)
	return err
}

// Handle points at the invoking message.
func (m *MessageContext) Handle() platform.Handle {
	return platform.Handle{ChannelID: m.ChannelID, MessageID: m.MessageID}
}

// PermissionedCommand is implemented by commands that need the invoker to
// hold at least one of the returned permission bits.
type PermissionedCommand interface {
	UserPermissions() []int64
}

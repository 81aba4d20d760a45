// Package platform describes what the bot needs from the chat platform:
// member voice moderation and message lifecycle calls.
package platform

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means the target (usually a message) no longer exists.
	ErrNotFound = errors.New("platform: not found")
	// ErrPermission means the bot lacks the rights for the call.
	ErrPermission = errors.New("platform: missing permissions")
)

// Handle identifies a message posted by the bot.
type Handle struct {
	ChannelID string
	MessageID string
}

// IsZero reports whether h points at nothing.
func (h Handle) IsZero() bool { return h.MessageID == "" }

type Members interface {
	SetMute(ctx context.Context, guildID, userID string, mute bool) error
	SetDeafen(ctx context.Context, guildID, userID string, deafen bool) error
}

type Messages interface {
	Send(ctx context.Context, channelID, content string) (Handle, error)
	Edit(ctx context.Context, h Handle, content string) error
	Delete(ctx context.Context, h Handle) error
	AddReaction(ctx context.Context, h Handle, emoji string) error
	RemoveReaction(ctx context.Context, h Handle, emoji, userID string) error
}

type Platform interface {
	Members
	Messages
}

// IgnoreNotFound turns ErrNotFound into nil.
func IgnoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

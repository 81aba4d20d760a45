package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/keshon/server-shh/internal/platform"
)

// Deleter removes a posted message.
type Deleter interface {
	Delete(ctx context.Context, h platform.Handle) error
}

// Tracker holds, per guild, the single live announcement message and the
// transient emoji prompt.
type Tracker struct {
	mu            sync.Mutex
	announcements map[string]platform.Handle
	prompts       map[string]platform.Handle
}

func NewTracker() *Tracker {
	return &Tracker{
		announcements: make(map[string]platform.Handle),
		prompts:       make(map[string]platform.Handle),
	}
}

// ReplaceAnnouncement deletes the current announcement, if any, and stores
// next in its place. A nil next leaves the slot empty. A message that was
// already deleted counts as deleted. On any other delete failure the slot is
// left as it was.
func (t *Tracker) ReplaceAnnouncement(ctx context.Context, d Deleter, guildID string, next *platform.Handle) error {
	return t.replace(ctx, d, t.announcements, guildID, next)
}

func (t *Tracker) CurrentAnnouncement(guildID string) (platform.Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.announcements[guildID]
	return h, ok
}

// SetEmojiPrompt stores h as the guild's prompt, deleting an older one.
func (t *Tracker) SetEmojiPrompt(ctx context.Context, d Deleter, guildID string, h platform.Handle) error {
	return t.replace(ctx, d, t.prompts, guildID, &h)
}

func (t *Tracker) EmojiPrompt(guildID string) (platform.Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.prompts[guildID]
	return h, ok
}

// ClearEmojiPrompt deletes the guild's prompt message and empties the slot.
func (t *Tracker) ClearEmojiPrompt(ctx context.Context, d Deleter, guildID string) error {
	return t.replace(ctx, d, t.prompts, guildID, nil)
}

// Drop forgets both slots for the guild without touching the platform.
func (t *Tracker) Drop(guildID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.announcements, guildID)
	delete(t.prompts, guildID)
}

func (t *Tracker) replace(ctx context.Context, d Deleter, slot map[string]platform.Handle, guildID string, next *platform.Handle) error {
	t.mu.Lock()
	prev, had := slot[guildID]
	t.mu.Unlock()

	if had {
		if err := platform.IgnoreNotFound(d.Delete(ctx, prev)); err != nil {
			return fmt.Errorf("delete message %s: %w", prev.MessageID, err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if next == nil {
		delete(slot, guildID)
	} else {
		slot[guildID] = *next
	}
	return nil
}

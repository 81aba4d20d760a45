// Package waitroom implements the approval flow: members joining voice in an
// opted-in guild are muted and deafened until they react to the guild's
// announcement with the approval emoji.
//
// Every entry point takes the guild lock from state.BotState for its whole
// run, so events for one guild are handled one at a time.
package waitroom

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/keshon/server-shh/internal/platform"
	"github.com/keshon/server-shh/internal/render"
	"github.com/keshon/server-shh/internal/state"
	"github.com/keshon/server-shh/internal/storage"
)

const DefaultEmoji = "🎤"

type Service struct {
	store        storage.Store
	state        *state.BotState
	platform     platform.Platform
	defaultEmoji string
}

func New(store storage.Store, st *state.BotState, p platform.Platform, defaultEmoji string) *Service {
	if defaultEmoji == "" {
		defaultEmoji = DefaultEmoji
	}
	return &Service{store: store, state: st, platform: p, defaultEmoji: defaultEmoji}
}

// VoiceUpdate is a member's voice channel before and after a change. An
// empty channel ID means "not in voice".
type VoiceUpdate struct {
	GuildID         string
	UserID          string
	BeforeChannelID string
	AfterChannelID  string
}

func (u VoiceUpdate) joined() bool { return u.BeforeChannelID == "" && u.AfterChannelID != "" }
func (u VoiceUpdate) left() bool   { return u.BeforeChannelID != "" && u.AfterChannelID == "" }

// Reaction is an emoji added to a message by a user. Emoji is in API form.
type Reaction struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	Emoji     string
}

// HandleVoiceUpdate mutes newcomers of opted-in guilds and forgets waiting
// members who leave voice.
func (s *Service) HandleVoiceUpdate(ctx context.Context, u VoiceUpdate) error {
	if u.GuildID == "" || u.UserID == "" {
		return nil
	}
	unlock := s.state.Lock(u.GuildID)
	defer unlock()

	switch {
	case u.joined():
		return s.join(ctx, u)
	case u.left():
		return s.leave(ctx, u)
	}
	return nil
}

func (s *Service) join(ctx context.Context, u VoiceUpdate) error {
	cfg, ok, err := s.store.Get(ctx, u.GuildID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if s.state.Waiting.IsWaiting(u.GuildID, u.UserID) {
		return nil
	}

	if err := s.platform.SetMute(ctx, u.GuildID, u.UserID, true); err != nil {
		return s.moderationErr("mute", u.GuildID, u.UserID, err)
	}
	if err := s.platform.SetDeafen(ctx, u.GuildID, u.UserID, true); err != nil {
		// not waiting means no way to react out, so undo the mute
		if uerr := s.platform.SetMute(ctx, u.GuildID, u.UserID, false); uerr != nil {
			log.Printf("[WARN] Failed to unmute %s after deafen failed in guild %s: %v", u.UserID, u.GuildID, uerr)
		}
		return s.moderationErr("deafen", u.GuildID, u.UserID, err)
	}

	s.state.Waiting.Add(u.GuildID, u.UserID)
	log.Printf("[INFO] Muted user %s in channel %s (guild %s)", u.UserID, u.AfterChannelID, u.GuildID)

	return s.refresh(ctx, cfg, []string{u.UserID})
}

func (s *Service) leave(ctx context.Context, u VoiceUpdate) error {
	if !s.state.Waiting.Remove(u.GuildID, u.UserID) {
		return nil
	}
	log.Printf("[INFO] User %s left the waiting list for channel %s (guild %s)", u.UserID, u.BeforeChannelID, u.GuildID)

	cfg, ok, err := s.store.Get(ctx, u.GuildID)
	if err != nil {
		return err
	}
	if !ok {
		return s.state.Messages.ReplaceAnnouncement(ctx, s.platform, u.GuildID, nil)
	}
	return s.refresh(ctx, cfg, nil)
}

// HandleReaction releases a waiting member who reacted to the announcement
// with the approval emoji, or takes any reaction on the emoji prompt as the
// guild's new approval emoji.
func (s *Service) HandleReaction(ctx context.Context, r Reaction) error {
	if r.GuildID == "" {
		return nil
	}
	unlock := s.state.Lock(r.GuildID)
	defer unlock()

	cfg, ok, err := s.store.Get(ctx, r.GuildID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if ann, ok := s.state.Messages.CurrentAnnouncement(r.GuildID); ok && ann.MessageID == r.MessageID {
		if r.Emoji != cfg.Emoji || !s.state.Waiting.IsWaiting(r.GuildID, r.UserID) {
			return nil
		}
		return s.approve(ctx, cfg, ann, r.UserID)
	}

	if prompt, ok := s.state.Messages.EmojiPrompt(r.GuildID); ok && prompt.MessageID == r.MessageID {
		return s.setEmoji(ctx, cfg, prompt, r.Emoji)
	}
	return nil
}

func (s *Service) approve(ctx context.Context, cfg storage.GuildConfig, ann platform.Handle, userID string) error {
	if err := platform.IgnoreNotFound(s.platform.RemoveReaction(ctx, ann, cfg.Emoji, userID)); err != nil {
		log.Printf("[WARN] Failed to remove reaction of %s in guild %s: %v", userID, cfg.GuildID, err)
	}
	if err := s.platform.SetMute(ctx, cfg.GuildID, userID, false); err != nil {
		return s.moderationErr("unmute", cfg.GuildID, userID, err)
	}
	if err := s.platform.SetDeafen(ctx, cfg.GuildID, userID, false); err != nil {
		return s.moderationErr("undeafen", cfg.GuildID, userID, err)
	}

	s.state.Waiting.Remove(cfg.GuildID, userID)
	log.Printf("[INFO] Unmuted user %s in guild %s", userID, cfg.GuildID)

	return s.refresh(ctx, cfg, nil)
}

func (s *Service) setEmoji(ctx context.Context, cfg storage.GuildConfig, prompt platform.Handle, emoji string) error {
	if err := s.store.UpdateEmoji(ctx, cfg.GuildID, emoji); err != nil {
		return err
	}
	if err := s.state.Messages.ClearEmojiPrompt(ctx, s.platform, cfg.GuildID); err != nil {
		return err
	}
	log.Printf("[INFO] Approval emoji for guild %s set to %s", cfg.GuildID, emoji)

	if _, err := s.platform.Send(ctx, prompt.ChannelID, fmt.Sprintf("Got it! React with %s to be let in.", render.EmojiText(emoji))); err != nil {
		return err
	}

	// a live announcement carries the old emoji in its text and reaction
	cfg.Emoji = emoji
	return s.repost(ctx, cfg)
}

// repost replaces a live announcement with a fresh one built from cfg.
// Without a live announcement there is nothing to do.
func (s *Service) repost(ctx context.Context, cfg storage.GuildConfig) error {
	if _, ok := s.state.Messages.CurrentAnnouncement(cfg.GuildID); !ok {
		return nil
	}
	if err := s.state.Messages.ReplaceAnnouncement(ctx, s.platform, cfg.GuildID, nil); err != nil {
		return err
	}
	return s.refresh(ctx, cfg, nil)
}

// refresh brings the announcement in line with the waiting list. fresh holds
// the members added by the current event.
func (s *Service) refresh(ctx context.Context, cfg storage.GuildConfig, fresh []string) error {
	current, has := s.state.Messages.CurrentAnnouncement(cfg.GuildID)
	plan := render.Announcement(render.Input{
		Waiting:         s.state.Waiting.Snapshot(cfg.GuildID),
		Fresh:           fresh,
		ChannelID:       cfg.ChannelID,
		Emoji:           cfg.Emoji,
		HasAnnouncement: has,
	})

	switch plan.Action {
	case render.ActionDelete:
		return s.state.Messages.ReplaceAnnouncement(ctx, s.platform, cfg.GuildID, nil)
	case render.ActionEdit:
		err := s.platform.Edit(ctx, current, plan.Content)
		if errors.Is(err, platform.ErrNotFound) {
			// someone removed it by hand, post a fresh one
			return s.recreate(ctx, cfg, plan.Content)
		}
		if err != nil {
			return fmt.Errorf("edit announcement: %w", err)
		}
		return s.attachEmoji(ctx, cfg, current)
	case render.ActionRecreate:
		return s.recreate(ctx, cfg, plan.Content)
	}
	return nil
}

func (s *Service) recreate(ctx context.Context, cfg storage.GuildConfig, content string) error {
	if err := s.state.Messages.ReplaceAnnouncement(ctx, s.platform, cfg.GuildID, nil); err != nil {
		return err
	}
	h, err := s.platform.Send(ctx, cfg.ChannelID, content)
	if err != nil {
		return fmt.Errorf("send announcement: %w", err)
	}
	if err := s.state.Messages.ReplaceAnnouncement(ctx, s.platform, cfg.GuildID, &h); err != nil {
		return err
	}
	return s.attachEmoji(ctx, cfg, h)
}

func (s *Service) attachEmoji(ctx context.Context, cfg storage.GuildConfig, h platform.Handle) error {
	if err := s.platform.AddReaction(ctx, h, cfg.Emoji); err != nil {
		return fmt.Errorf("add reaction %s: %w", cfg.Emoji, err)
	}
	return nil
}

func (s *Service) moderationErr(action, guildID, userID string, err error) error {
	if errors.Is(err, platform.ErrPermission) {
		log.Printf("[ERR] Missing permission to %s user %s in guild %s", action, userID, guildID)
	}
	return fmt.Errorf("%s %s: %w", action, userID, err)
}

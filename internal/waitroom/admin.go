package waitroom

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/keshon/server-shh/internal/platform"
	"github.com/keshon/server-shh/internal/render"
)

// Here opts the guild in with channelID as the announce channel. An
// existing approval emoji is kept.
func (s *Service) Here(ctx context.Context, guildID, channelID string) error {
	unlock := s.state.Lock(guildID)
	defer unlock()

	emoji := s.defaultEmoji
	cfg, ok, err := s.store.Get(ctx, guildID)
	if err != nil {
		return err
	}
	if ok && cfg.Emoji != "" {
		emoji = cfg.Emoji
	}
	if err := s.store.Upsert(ctx, guildID, channelID, emoji); err != nil {
		return err
	}
	log.Printf("[INFO] Shh-ing enabled in guild %s via channel %s", guildID, channelID)

	if _, err := s.platform.Send(ctx, channelID, "I'll shh! people that join voice from here in "+render.ChannelMention(channelID)); err != nil {
		return err
	}
	if ok && cfg.ChannelID != channelID {
		// move the live announcement to the new channel
		cfg.ChannelID = channelID
		cfg.Emoji = emoji
		return s.repost(ctx, cfg)
	}
	return nil
}

// Off releases everyone still waiting, removes the bot's messages and forgets
// the guild's config. Releasing continues past individual failures; those
// errors are returned together at the end.
func (s *Service) Off(ctx context.Context, guildID, channelID string) error {
	unlock := s.state.Lock(guildID)
	defer unlock()

	log.Printf("[INFO] Shh-ing disabled in guild %s", guildID)

	var errs []error
	for _, userID := range s.state.Waiting.Clear(guildID) {
		if err := s.platform.SetMute(ctx, guildID, userID, false); err != nil {
			errs = append(errs, s.moderationErr("unmute", guildID, userID, err))
			continue
		}
		if err := s.platform.SetDeafen(ctx, guildID, userID, false); err != nil {
			errs = append(errs, s.moderationErr("undeafen", guildID, userID, err))
		}
	}

	if err := s.state.Messages.ReplaceAnnouncement(ctx, s.platform, guildID, nil); err != nil {
		errs = append(errs, err)
	}
	if err := s.state.Messages.ClearEmojiPrompt(ctx, s.platform, guildID); err != nil {
		errs = append(errs, err)
	}
	// forget the handles even if deletes failed, the guild is leaving the flow
	s.state.Messages.Drop(guildID)

	if err := s.store.Remove(ctx, guildID); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.platform.Send(ctx, channelID, "Shh! time is over"); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// PromptEmoji posts the message whose next reaction becomes the guild's
// approval emoji.
func (s *Service) PromptEmoji(ctx context.Context, guildID, channelID string) error {
	unlock := s.state.Lock(guildID)
	defer unlock()

	cfg, ok, err := s.store.Get(ctx, guildID)
	if err != nil {
		return err
	}
	if !ok {
		_, err := s.platform.Send(ctx, channelID, "I'm not shh-ing anyone here yet, use `here` in the channel I should post in first.")
		return err
	}

	h, err := s.platform.Send(ctx, channelID, fmt.Sprintf(
		"React to this message with the emoji people should use to get in. Currently: %s", render.EmojiText(cfg.Emoji)))
	if err != nil {
		return err
	}
	return s.state.Messages.SetEmojiPrompt(ctx, s.platform, guildID, h)
}

// HandleGuildRemove forgets a guild the bot is no longer part of. No platform
// calls are made; the bot cannot reach the guild anymore.
func (s *Service) HandleGuildRemove(ctx context.Context, guildID string) error {
	unlock := s.state.Lock(guildID)
	defer unlock()

	if dropped := s.state.DropGuild(guildID); len(dropped) > 0 {
		log.Printf("[WARN] Left guild %s with %d members still waiting", guildID, len(dropped))
	}
	return s.store.Remove(ctx, guildID)
}

// CleanupMessage deletes a message, treating an already deleted one as done.
func (s *Service) CleanupMessage(ctx context.Context, h platform.Handle) error {
	return platform.IgnoreNotFound(s.platform.Delete(ctx, h))
}

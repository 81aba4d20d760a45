package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/keshon/server-shh/internal/platform"
	"github.com/keshon/server-shh/pkg/retrylimit"
)

// API implements platform.Platform over the Discord REST API. Calls are paced
// by an adaptive limiter and retried on 429 and 5xx.
type API struct {
	s      *discordgo.Session
	lim    *retrylimit.AdaptiveLimiter
	policy retrylimit.Policy
}

func NewAPI(s *discordgo.Session, rps float64) *API {
	return &API{
		s:      s,
		lim:    retrylimit.NewAdaptiveLimiter(rate.Limit(rps), 1, rate.Limit(rps*4), 1, 0.5),
		policy: retrylimit.DefaultPolicy(),
	}
}

var _ platform.Platform = (*API)(nil)

func (a *API) do(ctx context.Context, fn func(opts ...discordgo.RequestOption) error) error {
	return retrylimit.Do(ctx, a.lim, a.policy, func() error {
		return classify(fn(discordgo.WithContext(ctx)))
	})
}

func (a *API) SetMute(ctx context.Context, guildID, userID string, mute bool) error {
	return a.do(ctx, func(opts ...discordgo.RequestOption) error {
		return a.s.GuildMemberMute(guildID, userID, mute, opts...)
	})
}

func (a *API) SetDeafen(ctx context.Context, guildID, userID string, deafen bool) error {
	return a.do(ctx, func(opts ...discordgo.RequestOption) error {
		return a.s.GuildMemberDeafen(guildID, userID, deafen, opts...)
	})
}

func (a *API) Send(ctx context.Context, channelID, content string) (platform.Handle, error) {
	var msg *discordgo.Message
	err := a.do(ctx, func(opts ...discordgo.RequestOption) error {
		var err error
		msg, err = a.s.ChannelMessageSend(channelID, content, opts...)
		return err
	})
	if err != nil {
		return platform.Handle{}, err
	}
	return platform.Handle{ChannelID: msg.ChannelID, MessageID: msg.ID}, nil
}

func (a *API) Edit(ctx context.Context, h platform.Handle, content string) error {
	return a.do(ctx, func(opts ...discordgo.RequestOption) error {
		_, err := a.s.ChannelMessageEdit(h.ChannelID, h.MessageID, content, opts...)
		return err
	})
}

func (a *API) Delete(ctx context.Context, h platform.Handle) error {
	return a.do(ctx, func(opts ...discordgo.RequestOption) error {
		return a.s.ChannelMessageDelete(h.ChannelID, h.MessageID, opts...)
	})
}

func (a *API) AddReaction(ctx context.Context, h platform.Handle, emoji string) error {
	return a.do(ctx, func(opts ...discordgo.RequestOption) error {
		return a.s.MessageReactionAdd(h.ChannelID, h.MessageID, apiEmoji(emoji), opts...)
	})
}

func (a *API) RemoveReaction(ctx context.Context, h platform.Handle, emoji, userID string) error {
	return a.do(ctx, func(opts ...discordgo.RequestOption) error {
		return a.s.MessageReactionRemove(h.ChannelID, h.MessageID, apiEmoji(emoji), userID, opts...)
	})
}

// apiEmoji drops the animated marker; reaction endpoints want "name:id".
func apiEmoji(emoji string) string {
	if strings.Count(emoji, ":") == 2 {
		return strings.TrimPrefix(emoji, "a:")
	}
	return emoji
}

// ChannelPermissions returns the effective permissions of userID in channelID.
func (a *API) ChannelPermissions(ctx context.Context, userID, channelID string) (int64, error) {
	var perms int64
	err := a.do(ctx, func(opts ...discordgo.RequestOption) error {
		var err error
		perms, err = a.s.UserChannelPermissions(userID, channelID, opts...)
		return err
	})
	return perms, err
}

// statusError exposes the HTTP status of a REST failure to retrylimit.
type statusError struct {
	code int
	err  error
}

func (e *statusError) Error() string   { return e.err.Error() }
func (e *statusError) Unwrap() error   { return e.err }
func (e *statusError) StatusCode() int { return e.code }

// classify maps REST failures onto the platform sentinels. Only 429 and 5xx
// stay retryable; every other API error is final.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return err
	}

	status, code := 0, 0
	if rest.Response != nil {
		status = rest.Response.StatusCode
	}
	if rest.Message != nil {
		code = rest.Message.Code
	}

	switch {
	case code == discordgo.ErrCodeUnknownMessage || status == http.StatusNotFound:
		return retrylimit.Fatal(fmt.Errorf("%w: %w", platform.ErrNotFound, err))
	case code == discordgo.ErrCodeMissingPermissions || status == http.StatusForbidden:
		return retrylimit.Fatal(fmt.Errorf("%w: %w", platform.ErrPermission, err))
	case status == http.StatusTooManyRequests || status >= 500:
		return &statusError{code: status, err: err}
	default:
		return retrylimit.Fatal(err)
	}
}

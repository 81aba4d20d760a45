package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/server-shh/internal/platform"
	"github.com/keshon/server-shh/pkg/retrylimit"
)

func restErr(status, code int) *discordgo.RESTError {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: status, Status: http.StatusText(status)},
		Message:  &discordgo.APIErrorMessage{Code: code},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		sentinel  error
		retryable bool
	}{
		{"unknown message", restErr(http.StatusNotFound, discordgo.ErrCodeUnknownMessage), platform.ErrNotFound, false},
		{"plain 404", restErr(http.StatusNotFound, 0), platform.ErrNotFound, false},
		{"missing permissions", restErr(http.StatusForbidden, discordgo.ErrCodeMissingPermissions), platform.ErrPermission, false},
		{"rate limited", restErr(http.StatusTooManyRequests, 0), nil, true},
		{"bad gateway", restErr(http.StatusBadGateway, 0), nil, true},
		{"bad request", restErr(http.StatusBadRequest, 50035), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			require.Error(t, got)
			if tt.sentinel != nil {
				assert.ErrorIs(t, got, tt.sentinel)
			}
			var fatal *retrylimit.FatalError
			assert.Equal(t, !tt.retryable, errors.As(got, &fatal))
			assert.Equal(t, tt.retryable, retrylimit.IsRateLimited(got) || retrylimit.IsServerError(got))
		})
	}
}

func TestClassifyPassesOtherErrors(t *testing.T) {
	assert.NoError(t, classify(nil))
	plain := errors.New("dial tcp: timeout")
	assert.Same(t, plain, classify(plain))
}

// Sentinels survive the retry loop so callers can match them.
func TestClassifiedErrorThroughRetry(t *testing.T) {
	calls := 0
	err := retrylimit.Do(context.Background(), nil, retrylimit.DefaultPolicy(), func() error {
		calls++
		return classify(restErr(http.StatusNotFound, discordgo.ErrCodeUnknownMessage))
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, platform.ErrNotFound)
	assert.NoError(t, platform.IgnoreNotFound(err))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		content string
		name    string
		args    []string
		ok      bool
	}{
		{"$shh_here", "here", []string{}, true},
		{"  $shh_OFF  ", "off", []string{}, true},
		{"$shh_emoji now please", "emoji", []string{"now", "please"}, true},
		{"$shh_", "", nil, false},
		{"hello $shh_here", "", nil, false},
		{"here", "", nil, false},
	}
	for _, tt := range tests {
		name, args, ok := parseCommand("$shh_", tt.content)
		assert.Equal(t, tt.ok, ok, tt.content)
		assert.Equal(t, tt.name, name, tt.content)
		assert.Equal(t, tt.args, args, tt.content)
	}
}

func TestVoiceUpdate(t *testing.T) {
	joined := voiceUpdate(&discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{GuildID: "g", UserID: "u", ChannelID: "v"},
	})
	assert.Equal(t, "", joined.BeforeChannelID)
	assert.Equal(t, "v", joined.AfterChannelID)

	left := voiceUpdate(&discordgo.VoiceStateUpdate{
		VoiceState:   &discordgo.VoiceState{GuildID: "g", UserID: "u"},
		BeforeUpdate: &discordgo.VoiceState{GuildID: "g", UserID: "u", ChannelID: "v"},
	})
	assert.Equal(t, "v", left.BeforeChannelID)
	assert.Equal(t, "", left.AfterChannelID)
}

func TestReactionUsesAPIName(t *testing.T) {
	r := reaction(&discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
		GuildID: "g", ChannelID: "c", MessageID: "m", UserID: "u",
		Emoji: discordgo.Emoji{ID: "123", Name: "party"},
	}})
	assert.Equal(t, "party:123", r.Emoji)

	r = reaction(&discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
		Emoji: discordgo.Emoji{Name: "✅"},
	}})
	assert.Equal(t, "✅", r.Emoji)
}

func TestAnimatedEmojiKeepsMarker(t *testing.T) {
	r := reaction(&discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
		Emoji: discordgo.Emoji{ID: "7", Name: "dance", Animated: true},
	}})
	assert.Equal(t, "a:dance:7", r.Emoji)
	assert.Equal(t, "dance:7", apiEmoji(r.Emoji))
	assert.Equal(t, "party:123", apiEmoji("party:123"))
	assert.Equal(t, "a:9", apiEmoji("a:9"))
	assert.Equal(t, "✅", apiEmoji("✅"))
}

func TestRegistryHoldsChatCommands(t *testing.T) {
	reg, err := newRegistry(nil)
	require.NoError(t, err)
	for _, name := range []string{"here", "off", "emoji"} {
		assert.NotNil(t, reg.Get(name), name)
	}
}

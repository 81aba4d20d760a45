package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/server-shh/internal/command"
	"github.com/keshon/server-shh/internal/platform"
	"github.com/keshon/server-shh/pkg/cmd"
)

type recordingMessages struct {
	sent []string
}

func (r *recordingMessages) Send(_ context.Context, channelID, content string) (platform.Handle, error) {
	r.sent = append(r.sent, content)
	return platform.Handle{ChannelID: channelID, MessageID: "reply"}, nil
}
func (r *recordingMessages) Edit(context.Context, platform.Handle, string) error {
	return nil
}
func (r *recordingMessages) Delete(context.Context, platform.Handle) error {
	return nil
}
func (r *recordingMessages) AddReaction(context.Context, platform.Handle, string) error {
	return nil
}
func (r *recordingMessages) RemoveReaction(context.Context, platform.Handle, string, string) error {
	return nil
}

type probe struct {
	runs  int
	perms []int64
	err   error
}

func (p *probe) Name() string             { return "probe" }
func (p *probe) Description() string      { return "" }
func (p *probe) UserPermissions() []int64 { return p.perms }
func (p *probe) Run(context.Context, *cmd.Invocation) error {
	p.runs++
	return p.err
}

func invoke(t *testing.T, c cmd.Command, m *command.MessageContext) error {
	t.Helper()
	return c.Run(context.Background(), &cmd.Invocation{Data: m})
}

func TestGuildOnly(t *testing.T) {
	p := &probe{}
	c := cmd.Apply(p, WithGuildOnly())

	require.NoError(t, invoke(t, c, &command.MessageContext{}))
	assert.Equal(t, 0, p.runs)

	require.NoError(t, invoke(t, c, &command.MessageContext{GuildID: "g"}))
	assert.Equal(t, 1, p.runs)
}

func TestPermissionCheck(t *testing.T) {
	tests := []struct {
		name    string
		perms   int64
		allowed bool
	}{
		{"manage server", discordgo.PermissionManageGuild, true},
		{"administrator", discordgo.PermissionAdministrator, true},
		{"plain member", discordgo.PermissionSendMessages | discordgo.PermissionVoiceConnect, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &probe{perms: []int64{discordgo.PermissionManageGuild}}
			msgs := &recordingMessages{}
			c := cmd.Apply(p, Default()...)

			err := invoke(t, c, &command.MessageContext{GuildID: "g", ChannelID: "c", Permissions: tt.perms, Messages: msgs})
			require.NoError(t, err)

			if tt.allowed {
				assert.Equal(t, 1, p.runs)
				assert.Empty(t, msgs.sent)
			} else {
				assert.Equal(t, 0, p.runs)
				require.Len(t, msgs.sent, 1)
				assert.Contains(t, msgs.sent[0], "Manage Server")
			}
		})
	}
}

func TestPermissionCheckWithoutRequirements(t *testing.T) {
	p := &probe{}
	c := cmd.Apply(p, WithUserPermissionCheck())

	require.NoError(t, invoke(t, c, &command.MessageContext{GuildID: "g"}))
	assert.Equal(t, 1, p.runs)
}

func TestCommandLoggerPassesErrorThrough(t *testing.T) {
	boom := errors.New("boom")
	p := &probe{err: boom}
	c := cmd.Apply(p, WithCommandLogger())

	assert.ErrorIs(t, invoke(t, c, &command.MessageContext{GuildID: "g"}), boom)
}

func TestPermissionList(t *testing.T) {
	assert.Equal(t, "Manage Server` or `Administrator",
		permissionList([]int64{discordgo.PermissionManageGuild, discordgo.PermissionAdministrator}))
	assert.Equal(t, "0x1", permissionList([]int64{1}))
}

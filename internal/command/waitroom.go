package command

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/server-shh/pkg/cmd"
)

// Waitroom is the part of the approval flow the commands drive.
type Waitroom interface {
	Here(ctx context.Context, guildID, channelID string) error
	Off(ctx context.Context, guildID, channelID string) error
	PromptEmoji(ctx context.Context, guildID, channelID string) error
}

var moderatorPermissions = []int64{discordgo.PermissionManageGuild}

type HereCommand struct{ Room Waitroom }

func (c *HereCommand) Name() string { return "here" }
func (c *HereCommand) Description() string {
	return "Start shh-ing new voice members and announce them in this channel"
}
func (c *HereCommand) UserPermissions() []int64 { return moderatorPermissions }

func (c *HereCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	m, err := messageContext(inv)
	if err != nil {
		return err
	}
	return c.Room.Here(ctx, m.GuildID, m.ChannelID)
}

type OffCommand struct{ Room Waitroom }

func (c *OffCommand) Name() string             { return "off" }
func (c *OffCommand) Description() string      { return "Let everyone in and stop shh-ing" }
func (c *OffCommand) UserPermissions() []int64 { return moderatorPermissions }

func (c *OffCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	m, err := messageContext(inv)
	if err != nil {
		return err
	}
	return c.Room.Off(ctx, m.GuildID, m.ChannelID)
}

type EmojiCommand struct{ Room Waitroom }

func (c *EmojiCommand) Name() string             { return "emoji" }
func (c *EmojiCommand) Description() string      { return "Pick the emoji people react with to get in" }
func (c *EmojiCommand) UserPermissions() []int64 { return moderatorPermissions }

func (c *EmojiCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	m, err := messageContext(inv)
	if err != nil {
		return err
	}
	return c.Room.PromptEmoji(ctx, m.GuildID, m.ChannelID)
}

// All returns the chat commands bound to room.
func All(room Waitroom) []cmd.Command {
	return []cmd.Command{
		&HereCommand{Room: room},
		&OffCommand{Room: room},
		&EmojiCommand{Room: room},
	}
}

func messageContext(inv *cmd.Invocation) (*MessageContext, error) {
	m, ok := inv.Data.(*MessageContext)
	if !ok || m == nil {
		return nil, fmt.Errorf("command: unexpected invocation payload %T", inv.Data)
	}
	return m, nil
}

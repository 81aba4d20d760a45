package middleware

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/server-shh/internal/command"
	"github.com/keshon/server-shh/pkg/cmd"
)

var PermissionNames = map[int64]string{
	discordgo.PermissionAdministrator:      "Administrator",
	discordgo.PermissionManageGuild:        "Manage Server",
	discordgo.PermissionManageChannels:     "Manage Channels",
	discordgo.PermissionManageMessages:     "Manage Messages",
	discordgo.PermissionManageRoles:        "Manage Roles",
	discordgo.PermissionVoiceMuteMembers:   "Mute Members",
	discordgo.PermissionVoiceDeafenMembers: "Deafen Members",
	discordgo.PermissionModerateMembers:    "Moderate Members",
}

// WithUserPermissionCheck lets a command run only when the invoker holds at
// least one of its UserPermissions, or is an administrator. Otherwise the
// invoker gets a reply naming what is missing.
func WithUserPermissionCheck() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			m, ok := inv.Data.(*command.MessageContext)
			if !ok {
				return c.Run(ctx, inv)
			}
			meta, ok := cmd.Root(c).(command.PermissionedCommand)
			if !ok || len(meta.UserPermissions()) == 0 {
				return c.Run(ctx, inv)
			}
			if m.Permissions&discordgo.PermissionAdministrator != 0 {
				return c.Run(ctx, inv)
			}

			required := meta.UserPermissions()
			for _, p := range required {
				if m.Permissions&p != 0 {
					return c.Run(ctx, inv)
				}
			}

			log.Printf("[INFO] %s (%s) lacks permissions for %s in guild %s", m.Username, m.UserID, c.Name(), m.GuildID)
			return m.Reply(ctx, fmt.Sprintf("You need the `%s` permission to do that.", permissionList(required)))
		})
	}
}

func permissionList(perms []int64) string {
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		name := PermissionNames[p]
		if name == "" {
			name = fmt.Sprintf("0x%x", p)
		}
		names = append(names, name)
	}
	return strings.Join(names, "` or `")
}

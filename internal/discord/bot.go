package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/server-shh/internal/command"
	"github.com/keshon/server-shh/internal/config"
	"github.com/keshon/server-shh/internal/middleware"
	"github.com/keshon/server-shh/internal/platform"
	"github.com/keshon/server-shh/internal/state"
	"github.com/keshon/server-shh/internal/storage"
	"github.com/keshon/server-shh/internal/waitroom"
	"github.com/keshon/server-shh/pkg/cmd"
)

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsMessageContent

// Bot connects the approval flow to a Discord gateway session.
type Bot struct {
	cfg      *config.Config
	store    storage.Store
	state    *state.BotState
	dg       *discordgo.Session
	api      *API
	room     *waitroom.Service
	commands *cmd.Registry

	// base is the context every event handler derives from.
	base context.Context
}

func NewBot(cfg *config.Config, store storage.Store) *Bot {
	return &Bot{
		cfg:   cfg,
		store: store,
		state: state.New(),
		base:  context.Background(),
	}
}

// Run opens the gateway session and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New(b.cfg.BotToken())
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = intents

	b.dg = dg
	b.base = ctx
	b.api = NewAPI(dg, b.cfg.APIRateLimit)
	b.room = waitroom.New(b.store, b.state, b.api, b.cfg.DefaultEmoji)
	if b.commands, err = newRegistry(b.room); err != nil {
		return err
	}

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildDelete)
	dg.AddHandler(b.onVoiceStateUpdate)
	dg.AddHandler(b.onMessageReactionAdd)
	dg.AddHandler(b.onMessageCreate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	<-ctx.Done()
	log.Println("[INFO] Shutdown signal received. Cleaning up...")
	return nil
}

func newRegistry(room command.Waitroom) (*cmd.Registry, error) {
	reg := cmd.NewRegistry()
	for _, c := range command.All(room) {
		if err := reg.Register(cmd.Apply(c, middleware.Default()...)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// handle runs fn under the handler timeout, logging its error and
// recovering from panics so one bad event cannot take the session down.
func (b *Bot) handle(event, guildID string, fn func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERR] Panic while handling %s in guild %s: %v", event, guildID, r)
		}
	}()

	ctx, cancel := context.WithTimeout(b.base, b.cfg.HandlerTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		log.Printf("[ERR] Failed to handle %s in guild %s: %v", event, guildID, err)
	}
}

func (b *Bot) isSelf(s *discordgo.Session, userID string) bool {
	return s.State != nil && s.State.User != nil && s.State.User.ID == userID
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("[INFO] Logged in as %s#%s (%s)", r.User.Username, r.User.Discriminator, r.User.ID)
	for _, g := range r.Guilds {
		log.Printf("[INFO] Connected to guild %s", g.ID)
	}
	log.Printf("[INFO] ✅ Listening for commands with prefix %q", b.cfg.CommandPrefix)
}

func (b *Bot) onGuildDelete(s *discordgo.Session, g *discordgo.GuildDelete) {
	if g.Guild == nil {
		return
	}
	if g.Unavailable {
		log.Printf("[WARN] Guild %s is unavailable, keeping its config", g.ID)
		return
	}
	log.Printf("[INFO] Removed from guild %s", g.ID)
	b.handle("guild delete", g.ID, func(ctx context.Context) error {
		return b.room.HandleGuildRemove(ctx, g.ID)
	})
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.VoiceState == nil || b.isSelf(s, v.UserID) {
		return
	}
	if v.Member != nil && v.Member.User != nil && v.Member.User.Bot {
		return
	}
	u := voiceUpdate(v)
	b.handle("voice update", u.GuildID, func(ctx context.Context) error {
		return b.room.HandleVoiceUpdate(ctx, u)
	})
}

func voiceUpdate(v *discordgo.VoiceStateUpdate) waitroom.VoiceUpdate {
	u := waitroom.VoiceUpdate{
		GuildID:        v.GuildID,
		UserID:         v.UserID,
		AfterChannelID: v.ChannelID,
	}
	if v.BeforeUpdate != nil {
		u.BeforeChannelID = v.BeforeUpdate.ChannelID
	}
	return u
}

func (b *Bot) onMessageReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.MessageReaction == nil || b.isSelf(s, r.UserID) {
		return
	}
	rc := reaction(r)
	b.handle("reaction", rc.GuildID, func(ctx context.Context) error {
		return b.room.HandleReaction(ctx, rc)
	})
}

func reaction(r *discordgo.MessageReactionAdd) waitroom.Reaction {
	return waitroom.Reaction{
		GuildID:   r.GuildID,
		ChannelID: r.ChannelID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Emoji:     storedEmoji(r.Emoji),
	}
}

// storedEmoji is the API name of e, with an "a:" marker for animated custom
// emoji so messages can render them.
func storedEmoji(e discordgo.Emoji) string {
	if e.Animated && e.ID != "" {
		return "a:" + e.APIName()
	}
	return e.APIName()
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || b.isSelf(s, m.Author.ID) {
		return
	}
	name, args, ok := parseCommand(b.cfg.CommandPrefix, m.Content)
	if !ok {
		return
	}
	c := b.commands.Get(name)
	if c == nil {
		return
	}

	mc := &command.MessageContext{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		UserID:    m.Author.ID,
		Username:  m.Author.Username,
		Messages:  b.api,
	}
	b.handle("command "+c.Name(), m.GuildID, func(ctx context.Context) error {
		if mc.GuildID != "" {
			perms, err := b.api.ChannelPermissions(ctx, mc.UserID, mc.ChannelID)
			if err != nil {
				return fmt.Errorf("resolve permissions of %s: %w", mc.UserID, err)
			}
			mc.Permissions = perms
		}
		return b.runCommand(ctx, c, mc, args)
	})
}

// runCommand runs c and then removes the invoking message.
func (b *Bot) runCommand(ctx context.Context, c cmd.Command, mc *command.MessageContext, args []string) error {
	err := c.Run(ctx, &cmd.Invocation{Args: args, Data: mc})
	if errors.Is(err, platform.ErrPermission) {
		if rerr := mc.Reply(ctx, "I'm missing a permission for that. I need `Mute Members`, `Deafen Members` and `Manage Messages`."); rerr != nil {
			log.Printf("[WARN] Failed to report missing permissions in channel %s: %v", mc.ChannelID, rerr)
		}
	}
	if mc.GuildID != "" {
		if derr := b.room.CleanupMessage(ctx, mc.Handle()); derr != nil {
			log.Printf("[WARN] Failed to delete command message %s: %v", mc.MessageID, derr)
		}
	}
	return err
}

// parseCommand splits "<prefix><name> args..." into the command name and its
// arguments.
func parseCommand(prefix, content string) (string, []string, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

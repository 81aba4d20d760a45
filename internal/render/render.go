// Package render decides what the waiting-list announcement should look like
// and whether it has to be deleted, recreated or edited. It makes no calls.
package render

import (
	"fmt"
	"strings"
)

type Action int

const (
	ActionNone Action = iota
	ActionDelete
	ActionRecreate
	ActionEdit
)

func (a Action) String() string {
	switch a {
	case ActionDelete:
		return "delete"
	case ActionRecreate:
		return "recreate"
	case ActionEdit:
		return "edit"
	default:
		return "none"
	}
}

type Input struct {
	Waiting         []string // all waiting members, insertion order
	Fresh           []string // members added by this event
	ChannelID       string   // announce channel
	Emoji           string   // approval emoji, API form
	HasAnnouncement bool
}

type Plan struct {
	Action  Action
	Content string
}

// Announcement plans the next state of the guild's announcement message.
func Announcement(in Input) Plan {
	if len(in.Waiting) == 0 {
		return Plan{Action: ActionDelete}
	}

	content := announcementText(in)
	switch {
	case len(in.Fresh) > 0:
		// a new message pulls attention back and starts with a clean reaction set
		return Plan{Action: ActionRecreate, Content: content}
	case in.HasAnnouncement:
		return Plan{Action: ActionEdit, Content: content}
	default:
		return Plan{Action: ActionRecreate, Content: content}
	}
}

func announcementText(in Input) string {
	fresh := make(map[string]struct{}, len(in.Fresh))
	mentions := make([]string, 0, len(in.Waiting))
	for _, id := range in.Fresh {
		if _, dup := fresh[id]; dup {
			continue
		}
		fresh[id] = struct{}{}
		mentions = append(mentions, Mention(id))
	}
	for _, id := range in.Waiting {
		if _, ok := fresh[id]; ok {
			continue
		}
		mentions = append(mentions, Mention(id))
	}

	mate := "m8's"
	if len(in.Waiting) == 1 {
		mate = "m8"
	}

	return fmt.Sprintf("%s oi %s react with %s here in %s to chat",
		strings.Join(mentions, " "), mate, EmojiText(in.Emoji), ChannelMention(in.ChannelID))
}

func Mention(userID string) string { return "<@" + userID + ">" }

func ChannelMention(channelID string) string { return "<#" + channelID + ">" }

// EmojiText renders a stored emoji so it displays in a message. Unicode
// emoji pass through; custom "name:id" becomes "<:name:id>" and animated
// "a:name:id" becomes "<a:name:id>".
func EmojiText(emoji string) string {
	switch {
	case strings.HasPrefix(emoji, "<") || !strings.Contains(emoji, ":"):
		return emoji
	case strings.HasPrefix(emoji, "a:") && strings.Count(emoji, ":") == 2:
		return "<" + emoji + ">"
	default:
		return "<:" + emoji + ">"
	}
}

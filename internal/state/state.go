// Package state holds the bot's in-memory, per-guild runtime state: who is
// waiting for approval and which bot messages are live. Nothing here is
// persisted; it is rebuilt from nothing on restart.
package state

import "sync"

// BotState owns the process-wide registries. All sub-state is keyed by guild.
type BotState struct {
	Waiting  *Registry
	Messages *Tracker

	mu    sync.Mutex
	locks map[string]*guildLock
}

type guildLock struct {
	mu   sync.Mutex
	refs int
}

func New() *BotState {
	return &BotState{
		Waiting:  NewRegistry(),
		Messages: NewTracker(),
		locks:    make(map[string]*guildLock),
	}
}

// Lock serializes work on one guild. Different guilds do not block each
// other. The returned func releases the lock and must be called exactly once.
func (s *BotState) Lock(guildID string) (unlock func()) {
	s.mu.Lock()
	l, ok := s.locks[guildID]
	if !ok {
		l = &guildLock{}
		s.locks[guildID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, guildID)
		}
		s.mu.Unlock()
	}
}

// DropGuild forgets everything held for the guild and returns the members
// that were waiting.
func (s *BotState) DropGuild(guildID string) []string {
	s.Messages.Drop(guildID)
	return s.Waiting.Clear(guildID)
}

func (s *BotState) lockCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

package state

import "sync"

// Registry tracks, per guild, the members currently muted and waiting for
// approval. Members keep their insertion order.
type Registry struct {
	mu     sync.Mutex
	guilds map[string]*memberSet
}

type memberSet struct {
	order []string
	index map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{guilds: make(map[string]*memberSet)}
}

// Add inserts userID into the guild's waiting set. It reports false when the
// member was already waiting.
func (r *Registry) Add(guildID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.guilds[guildID]
	if !ok {
		set = &memberSet{index: make(map[string]struct{})}
		r.guilds[guildID] = set
	}
	if _, exists := set.index[userID]; exists {
		return false
	}
	set.index[userID] = struct{}{}
	set.order = append(set.order, userID)
	return true
}

// Remove drops userID from the guild's waiting set. It reports false when the
// member was not waiting. An emptied set is released.
func (r *Registry) Remove(guildID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.guilds[guildID]
	if !ok {
		return false
	}
	if _, exists := set.index[userID]; !exists {
		return false
	}
	delete(set.index, userID)
	for i, id := range set.order {
		if id == userID {
			set.order = append(set.order[:i], set.order[i+1:]...)
			break
		}
	}
	if len(set.order) == 0 {
		delete(r.guilds, guildID)
	}
	return true
}

func (r *Registry) IsWaiting(guildID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.guilds[guildID]
	if !ok {
		return false
	}
	_, exists := set.index[userID]
	return exists
}

// Snapshot returns a copy of the guild's waiting members in insertion order.
func (r *Registry) Snapshot(guildID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.guilds[guildID]
	if !ok {
		return nil
	}
	return append([]string(nil), set.order...)
}

func (r *Registry) Len(guildID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set, ok := r.guilds[guildID]; ok {
		return len(set.order)
	}
	return 0
}

// Clear removes the guild entry entirely and returns the members it held.
func (r *Registry) Clear(guildID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.guilds[guildID]
	if !ok {
		return nil
	}
	delete(r.guilds, guildID)
	return set.order
}

// Guilds returns the number of guilds with at least one waiting member.
func (r *Registry) Guilds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.guilds)
}

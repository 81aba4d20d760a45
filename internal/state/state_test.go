package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/server-shh/internal/platform"
)

func TestRegistryAddIsIdempotent(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Add("g", "u1"))
	assert.False(t, r.Add("g", "u1"))
	assert.True(t, r.Add("g", "u2"))

	assert.Equal(t, []string{"u1", "u2"}, r.Snapshot("g"))
	assert.Equal(t, 2, r.Len("g"))
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	r.Add("g", "u1")
	r.Add("g", "u2")
	r.Add("g", "u3")

	assert.False(t, r.Remove("g", "nobody"))
	assert.False(t, r.Remove("other", "u1"))
	assert.True(t, r.Remove("g", "u2"))
	assert.Equal(t, []string{"u1", "u3"}, r.Snapshot("g"))
	assert.False(t, r.IsWaiting("g", "u2"))
	assert.True(t, r.IsWaiting("g", "u3"))

	r.Remove("g", "u1")
	r.Remove("g", "u3")
	assert.Equal(t, 0, r.Guilds(), "emptied guild entry should be released")
}

func TestRegistrySnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	r.Add("g", "u1")

	snap := r.Snapshot("g")
	snap[0] = "mutated"

	assert.Equal(t, []string{"u1"}, r.Snapshot("g"))
	assert.Nil(t, r.Snapshot("unknown"))
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry()
	r.Add("g", "u1")
	r.Add("g", "u2")
	r.Add("h", "u3")

	assert.Equal(t, []string{"u1", "u2"}, r.Clear("g"))
	assert.Nil(t, r.Clear("g"))
	assert.Equal(t, 1, r.Guilds())
	assert.True(t, r.IsWaiting("h", "u3"))
}

type fakeDeleter struct {
	deleted []platform.Handle
	err     error
}

func (f *fakeDeleter) Delete(_ context.Context, h platform.Handle) error {
	f.deleted = append(f.deleted, h)
	return f.err
}

func TestTrackerReplaceAnnouncement(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker()
	d := &fakeDeleter{}

	first := platform.Handle{ChannelID: "c", MessageID: "m1"}
	require.NoError(t, tr.ReplaceAnnouncement(ctx, d, "g", &first))
	assert.Empty(t, d.deleted)

	second := platform.Handle{ChannelID: "c", MessageID: "m2"}
	require.NoError(t, tr.ReplaceAnnouncement(ctx, d, "g", &second))
	assert.Equal(t, []platform.Handle{first}, d.deleted)

	cur, ok := tr.CurrentAnnouncement("g")
	require.True(t, ok)
	assert.Equal(t, second, cur)

	require.NoError(t, tr.ReplaceAnnouncement(ctx, d, "g", nil))
	_, ok = tr.CurrentAnnouncement("g")
	assert.False(t, ok)
}

func TestTrackerAlreadyDeletedIsSuccess(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker()
	h := platform.Handle{ChannelID: "c", MessageID: "m1"}
	require.NoError(t, tr.ReplaceAnnouncement(ctx, &fakeDeleter{}, "g", &h))

	d := &fakeDeleter{err: fmt.Errorf("unknown message: %w", platform.ErrNotFound)}
	require.NoError(t, tr.ReplaceAnnouncement(ctx, d, "g", nil))

	_, ok := tr.CurrentAnnouncement("g")
	assert.False(t, ok)
}

func TestTrackerKeepsSlotOnUnexpectedError(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker()
	h := platform.Handle{ChannelID: "c", MessageID: "m1"}
	require.NoError(t, tr.ReplaceAnnouncement(ctx, &fakeDeleter{}, "g", &h))

	boom := errors.New("boom")
	err := tr.ReplaceAnnouncement(ctx, &fakeDeleter{err: boom}, "g", nil)
	require.ErrorIs(t, err, boom)

	cur, ok := tr.CurrentAnnouncement("g")
	require.True(t, ok)
	assert.Equal(t, h, cur)
}

func TestTrackerEmojiPrompt(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker()
	d := &fakeDeleter{}

	p1 := platform.Handle{ChannelID: "c", MessageID: "p1"}
	p2 := platform.Handle{ChannelID: "c", MessageID: "p2"}
	require.NoError(t, tr.SetEmojiPrompt(ctx, d, "g", p1))
	require.NoError(t, tr.SetEmojiPrompt(ctx, d, "g", p2))
	assert.Equal(t, []platform.Handle{p1}, d.deleted)

	got, ok := tr.EmojiPrompt("g")
	require.True(t, ok)
	assert.Equal(t, p2, got)

	require.NoError(t, tr.ClearEmojiPrompt(ctx, d, "g"))
	require.NoError(t, tr.ClearEmojiPrompt(ctx, d, "g"))
	assert.Equal(t, []platform.Handle{p1, p2}, d.deleted)

	_, ok = tr.EmojiPrompt("g")
	assert.False(t, ok)
}

func TestDropGuild(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Waiting.Add("g", "u1")
	h := platform.Handle{ChannelID: "c", MessageID: "m"}
	require.NoError(t, s.Messages.ReplaceAnnouncement(ctx, &fakeDeleter{}, "g", &h))
	require.NoError(t, s.Messages.SetEmojiPrompt(ctx, &fakeDeleter{}, "g", h))

	assert.Equal(t, []string{"u1"}, s.DropGuild("g"))

	_, ok := s.Messages.CurrentAnnouncement("g")
	assert.False(t, ok)
	_, ok = s.Messages.EmojiPrompt("g")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Waiting.Len("g"))
}

func TestLockSerializesSameGuild(t *testing.T) {
	s := New()

	unlock := s.Lock("g")
	acquired := make(chan struct{})
	go func() {
		release := s.Lock("g")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock on the same guild acquired while held")
	case <-time.After(50 * time.Millisecond):
	}

	// another guild is not blocked
	other := s.Lock("h")
	other()

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
}

func TestLockEntriesAreReleased(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			unlock := s.Lock(fmt.Sprintf("g%d", i%3))
			unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, s.lockCount())
}

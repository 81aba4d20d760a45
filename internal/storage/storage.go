// /internal/storage/storage.go
package storage

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/keshon/server-shh/datastore"
)

// GuildConfig is the durable opt-in record of a guild.
type GuildConfig struct {
	GuildID   string    `json:"guild_id"`
	ChannelID string    `json:"channel_id"`
	Emoji     string    `json:"emoji"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store keeps at most one GuildConfig per guild.
type Store interface {
	Get(ctx context.Context, guildID string) (GuildConfig, bool, error)
	Upsert(ctx context.Context, guildID, channelID, emoji string) error
	// UpdateEmoji is a no-op when the guild has no config.
	UpdateEmoji(ctx context.Context, guildID, emoji string) error
	Remove(ctx context.Context, guildID string) error
	List(ctx context.Context) ([]GuildConfig, error)
	Close() error
}

const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

type Options struct {
	Driver           string
	FilePath         string
	AutoSaveInterval time.Duration
	BackupCount      int
	DatabaseURL      string
}

// Open returns the store selected by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverFile:
		return NewFileStore(opts.FilePath, opts.AutoSaveInterval, opts.BackupCount)
	case DriverPostgres:
		return OpenPostgres(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

// FileStore keeps one JSON record per guild in a datastore file.
type FileStore struct {
	ds *datastore.DataStore
}

func NewFileStore(filePath string, autoSave time.Duration, backups int) (*FileStore, error) {
	ds, err := datastore.NewWithConfig(&datastore.Config{
		FilePath:         filePath,
		AutoSaveInterval: autoSave,
		BackupCount:      backups,
		Logger:           log.New(os.Stderr, "[datastore] ", log.LstdFlags),
	})
	if err != nil {
		return nil, fmt.Errorf("open datastore: %w", err)
	}
	return &FileStore{ds: ds}, nil
}

func (s *FileStore) Close() error {
	return s.ds.Close()
}

func (s *FileStore) Get(_ context.Context, guildID string) (GuildConfig, bool, error) {
	var rec GuildConfig
	ok, err := s.ds.Get(guildID, &rec)
	if err != nil {
		return GuildConfig{}, false, fmt.Errorf("read guild %s: %w", guildID, err)
	}
	if !ok {
		return GuildConfig{}, false, nil
	}
	rec.GuildID = guildID
	return rec, true, nil
}

func (s *FileStore) Upsert(_ context.Context, guildID, channelID, emoji string) error {
	return s.put(GuildConfig{GuildID: guildID, ChannelID: channelID, Emoji: emoji, UpdatedAt: time.Now().UTC()})
}

func (s *FileStore) UpdateEmoji(ctx context.Context, guildID, emoji string) error {
	rec, ok, err := s.Get(ctx, guildID)
	if err != nil || !ok {
		return err
	}
	rec.Emoji = emoji
	rec.UpdatedAt = time.Now().UTC()
	return s.put(rec)
}

func (s *FileStore) Remove(_ context.Context, guildID string) error {
	s.ds.Delete(guildID)
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]GuildConfig, error) {
	keys := s.ds.Keys()
	out := make([]GuildConfig, 0, len(keys))
	for _, k := range keys {
		rec, ok, err := s.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuildID < out[j].GuildID })
	return out, nil
}

// Flush writes pending changes to disk right away.
func (s *FileStore) Flush() error {
	return s.ds.SaveToFile()
}

func (s *FileStore) put(rec GuildConfig) error {
	if err := s.ds.Put(rec.GuildID, rec); err != nil {
		return fmt.Errorf("write guild %s: %w", rec.GuildID, err)
	}
	return nil
}

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore keeps guild configs in the guild_configs table.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects through pgx, checks health and applies migrations.
func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	if url == "" {
		return nil, errors.New("postgres: empty database url")
	}
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return NewPostgresStore(db), nil
}

// Migrate applies the embedded migrations.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) Get(ctx context.Context, guildID string) (GuildConfig, bool, error) {
	var c GuildConfig
	err := s.db.QueryRowContext(ctx, `
SELECT guild_id, channel_id, emoji, updated_at
  FROM guild_configs
 WHERE guild_id = $1
`, guildID).Scan(&c.GuildID, &c.ChannelID, &c.Emoji, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return GuildConfig{}, false, nil
	}
	if err != nil {
		return GuildConfig{}, false, fmt.Errorf("read guild %s: %w", guildID, err)
	}
	return c, true, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, guildID, channelID, emoji string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO guild_configs (guild_id, channel_id, emoji)
VALUES ($1, $2, $3)
ON CONFLICT (guild_id) DO UPDATE SET
  channel_id = EXCLUDED.channel_id,
  emoji      = EXCLUDED.emoji,
  updated_at = now()
`, guildID, channelID, emoji)
	if err != nil {
		return fmt.Errorf("upsert guild %s: %w", guildID, err)
	}
	return nil
}

func (s *PostgresStore) UpdateEmoji(ctx context.Context, guildID, emoji string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE guild_configs
   SET emoji = $1, updated_at = now()
 WHERE guild_id = $2
`, emoji, guildID)
	if err != nil {
		return fmt.Errorf("update emoji for guild %s: %w", guildID, err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, guildID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM guild_configs WHERE guild_id = $1`, guildID); err != nil {
		return fmt.Errorf("remove guild %s: %w", guildID, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]GuildConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT guild_id, channel_id, emoji, updated_at
  FROM guild_configs
 ORDER BY guild_id
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GuildConfig
	for rows.Next() {
		var c GuildConfig
		if err := rows.Scan(&c.GuildID, &c.ChannelID, &c.Emoji, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

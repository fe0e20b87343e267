// Package archive mirrors users and messages into PostgreSQL. It is an
// optional side write behind the in-memory store, enabled only when a
// database URL is configured; the store remains the source of truth.
package archive

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexuschat/server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id       INTEGER PRIMARY KEY,
	username      TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
	message_id  INTEGER PRIMARY KEY,
	sender_id   INTEGER NOT NULL,
	room_id     INTEGER NOT NULL,
	sender_name TEXT NOT NULL,
	content     TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS messages_room_idx ON messages (room_id, message_id);
`

// Archive writes chat records to PostgreSQL through a pgx connection pool.
type Archive struct {
	pool *pgxpool.Pool
}

// Connect opens a connection pool against databaseURL and ensures the schema
// exists.
func Connect(ctx context.Context, databaseURL string) (*Archive, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	log.Println("PostgreSQL archive connected")
	return &Archive{pool: pool}, nil
}

// SaveUser upserts a registered user.
func (a *Archive) SaveUser(ctx context.Context, user store.User) error {
	_, err := a.pool.Exec(ctx,
		`INSERT INTO users (user_id, username, password_hash, role, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE SET username = EXCLUDED.username`,
		user.ID, user.Name, user.PasswordHash, string(user.Role), user.CreatedAt)
	if err != nil {
		return fmt.Errorf("save user %d: %w", user.ID, err)
	}
	return nil
}

// SaveMessage appends a message to the archive.
func (a *Archive) SaveMessage(ctx context.Context, msg store.Message) error {
	_, err := a.pool.Exec(ctx,
		`INSERT INTO messages (message_id, sender_id, room_id, sender_name, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (message_id) DO NOTHING`,
		msg.ID, msg.SenderID, msg.RoomID, msg.SenderName, msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("save message %d: %w", msg.ID, err)
	}
	return nil
}

// RecentMessages returns the most recent limit messages for a room in
// chronological order. A limit of zero or below means unbounded.
func (a *Archive) RecentMessages(ctx context.Context, roomID, limit int) ([]store.Message, error) {
	query := `SELECT message_id, sender_id, room_id, sender_name, content, created_at
		FROM messages WHERE room_id = $1 ORDER BY message_id DESC`
	args := []any{roomID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages for room %d: %w", roomID, err)
	}
	defer rows.Close()

	var out []store.Message
	for rows.Next() {
		var m store.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RoomID, &m.SenderName, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query; flip to chronological.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Close releases the connection pool.
func (a *Archive) Close() {
	a.pool.Close()
	log.Println("PostgreSQL archive closed")
}

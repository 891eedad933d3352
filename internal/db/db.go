package db

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

type Database struct {
	Conn *sqlx.DB
}

func NewDatabase(dsn string) (*Database, error) {
	conn, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(25)
	conn.SetConnMaxLifetime(5 * time.Minute)
	return &Database{Conn: conn}, nil
}

func (d *Database) Close() error { return d.Conn.Close() }

func (d *Database) AutoMigrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id UUID PRIMARY KEY,
            username VARCHAR(50) UNIQUE NOT NULL,
            password VARCHAR(255) NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,

		`CREATE TABLE IF NOT EXISTS chats (
            id UUID PRIMARY KEY,
            type VARCHAR(16) NOT NULL CHECK (type IN ('individual', 'group')),
            name TEXT,
            created_by UUID NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            last_message_at TIMESTAMPTZ NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            participants JSONB NOT NULL,
            version BIGINT NOT NULL DEFAULT 1
        )`,

		`CREATE INDEX IF NOT EXISTS idx_chats_participants
            ON chats USING GIN (participants)`,

		`CREATE TABLE IF NOT EXISTS messages (
            id UUID NOT NULL,
            chat_id UUID NOT NULL,
            sender_id UUID NOT NULL,
            type VARCHAR(10) NOT NULL CHECK (type IN ('text', 'image')),
            content JSONB NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            PRIMARY KEY (chat_id, id)
        )`,

		`CREATE INDEX IF NOT EXISTS idx_messages_chat_created
            ON messages (chat_id, created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS deleted_messages (
            seq BIGSERIAL PRIMARY KEY,
            message_id UUID NOT NULL,
            chat_id UUID NOT NULL,
            deleted_by UUID NOT NULL,
            deleted_at TIMESTAMPTZ NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_deleted_messages_deleted_at
            ON deleted_messages (deleted_at)`,
	}

	for _, query := range queries {
		_, err := d.Conn.Exec(query)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

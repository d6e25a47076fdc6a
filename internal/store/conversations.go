package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/scribe/internal/ingest"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// SaveConversation writes a conversation and all of its turns in one
// transaction. Either both land or neither does.
func (s *Store) SaveConversation(ctx context.Context, conv *ingest.Conversation) (uuid.UUID, error) {
	meta, err := jsonbObject(conv.Metadata)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode conversation metadata: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Insert conversation
	convID := uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO conversations (id, title, source, metadata, created_at)
		VALUES ($1, $2, $3, $4, now())`,
		convID, conv.Title, string(conv.Source), meta,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert conversation: %w", err)
	}

	// 2. Insert turns as one batch
	if len(conv.Turns) > 0 {
		batch := &pgx.Batch{}
		for _, t := range conv.Turns {
			turnMeta, err := jsonbObject(t.Metadata)
			if err != nil {
				return uuid.Nil, fmt.Errorf("encode turn %d metadata: %w", t.TurnIndex, err)
			}
			batch.Queue(`
				INSERT INTO turns (id, conversation_id, turn_index, speaker, text, start_ms, end_ms, metadata)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				uuid.New(), convID, t.TurnIndex, t.Speaker, t.Text, t.StartMs.Ptr(), t.EndMs.Ptr(), turnMeta,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for i := range conv.Turns {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return uuid.Nil, fmt.Errorf("insert turn %d: %w", i, err)
			}
		}
		if err := br.Close(); err != nil {
			return uuid.Nil, fmt.Errorf("insert turns: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}
	return convID, nil
}

// ConversationRow is a stored conversation with its turns.
type ConversationRow struct {
	ID        uuid.UUID      `json:"id"`
	Title     string         `json:"title"`
	Source    string         `json:"source"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	Turns     []ingest.Turn  `json:"turns"`
}

// GetConversation fetches a conversation and its turns in turn order.
func (s *Store) GetConversation(ctx context.Context, id uuid.UUID) (*ConversationRow, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, title, source, metadata, created_at
		FROM conversations WHERE id = $1`, id)

	var c ConversationRow
	if err := row.Scan(&c.ID, &c.Title, &c.Source, &c.Metadata, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select conversation: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT turn_index, speaker, text, start_ms, end_ms, metadata
		FROM turns WHERE conversation_id = $1
		ORDER BY turn_index`, id)
	if err != nil {
		return nil, fmt.Errorf("select turns: %w", err)
	}
	defer rows.Close()

	c.Turns = []ingest.Turn{}
	for rows.Next() {
		var (
			t          ingest.Turn
			start, end *int64
		)
		if err := rows.Scan(&t.TurnIndex, &t.Speaker, &t.Text, &start, &end, &t.Metadata); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.StartMs = ingest.MillisFromPtr(start)
		t.EndMs = ingest.MillisFromPtr(end)
		c.Turns = append(c.Turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return &c, nil
}

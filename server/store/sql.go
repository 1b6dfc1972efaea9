package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hubenschmidt/go-orchestra/core"
)

// sqlStore implements ConversationStore for any database/sql driver. Queries
// are written with ? placeholders and rebound for drivers that number them.
type sqlStore struct {
	db       *sql.DB
	numbered bool
	now      func() time.Time
}

func (s *sqlStore) q(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) AppendTurn(ctx context.Context, t Turn) error {
	if t.ConversationID == "" {
		return errors.New("append turn: conversation id is required")
	}
	now := s.now().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO conversations (id, user_id, intent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET intent = excluded.intent, updated_at = excluded.updated_at`),
		t.ConversationID, t.UserID, string(t.Intent), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}

	var owner string
	var last int
	err = tx.QueryRowContext(ctx, s.q(`
		SELECT c.user_id, COALESCE(MAX(m.seq), 0)
		FROM conversations c LEFT JOIN messages m ON m.conversation_id = c.id
		WHERE c.id = ?
		GROUP BY c.user_id`), t.ConversationID).Scan(&owner, &last)
	if err != nil {
		return fmt.Errorf("read conversation: %w", err)
	}
	if owner != t.UserID {
		return fmt.Errorf("append turn to %s: %w", t.ConversationID, ErrOwnership)
	}

	insert := s.q(`
		INSERT INTO messages (conversation_id, seq, role, content, intent, agent_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, insert,
		t.ConversationID, last+1, string(core.RoleUser), t.UserMessage, string(t.Intent), "", now,
	); err != nil {
		return fmt.Errorf("insert user message: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insert,
		t.ConversationID, last+2, string(core.RoleAssistant), t.AssistantMessage, string(t.Intent), t.AgentID, now,
	); err != nil {
		return fmt.Errorf("insert assistant message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *sqlStore) RecordKnowledge(ctx context.Context, k KnowledgeRecord) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	if k.Tags == nil {
		k.Tags = []string{}
	}
	tags, err := json.Marshal(k.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.q(`
		INSERT INTO agent_knowledge (id, agent_id, topic, content, tags, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		k.ID, k.AgentID, k.Topic, k.Content, string(tags), k.Confidence, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert knowledge: %w", err)
	}
	return nil
}

func (s *sqlStore) GetConversation(ctx context.Context, id string) (Conversation, error) {
	var c Conversation
	var intent string
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, user_id, intent, created_at, updated_at
		FROM conversations WHERE id = ?`), id).Scan(&c.ID, &c.UserID, &intent, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	if err != nil {
		return c, fmt.Errorf("query conversation: %w", err)
	}
	c.Intent = core.Intent(intent)

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT seq, role, content, intent, agent_id, created_at
		FROM messages WHERE conversation_id = ? ORDER BY seq`), id)
	if err != nil {
		return c, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	c.Messages = []Message{}
	for rows.Next() {
		var m Message
		var role, msgIntent string
		if err := rows.Scan(&m.Seq, &role, &m.Content, &msgIntent, &m.AgentID, &m.CreatedAt); err != nil {
			return c, fmt.Errorf("scan message: %w", err)
		}
		m.Role = core.MessageRole(role)
		m.Intent = core.Intent(msgIntent)
		c.Messages = append(c.Messages, m)
	}
	return c, rows.Err()
}

func (s *sqlStore) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, user_id, intent, created_at, updated_at
		FROM conversations WHERE user_id = ? ORDER BY updated_at DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	convs := []Conversation{}
	for rows.Next() {
		var c Conversation
		var intent string
		if err := rows.Scan(&c.ID, &c.UserID, &intent, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.Intent = core.Intent(intent)
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func (s *sqlStore) DeleteConversation(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM messages WHERE conversation_id = ?`), id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM conversations WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *sqlStore) ListKnowledge(ctx context.Context, agentID string) ([]KnowledgeRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, agent_id, topic, content, CAST(tags AS TEXT), confidence, created_at
		FROM agent_knowledge WHERE agent_id = ? ORDER BY created_at`), agentID)
	if err != nil {
		return nil, fmt.Errorf("query knowledge: %w", err)
	}
	defer rows.Close()

	records := []KnowledgeRecord{}
	for rows.Next() {
		var k KnowledgeRecord
		var tags string
		if err := rows.Scan(&k.ID, &k.AgentID, &k.Topic, &k.Content, &tags, &k.Confidence, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan knowledge: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &k.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
		records = append(records, k)
	}
	return records, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

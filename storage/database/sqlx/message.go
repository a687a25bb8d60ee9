package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/shulesoft/shule/core/messaging"
)

type messageRepository struct {
	db *sqlx.DB
}

var _ messaging.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *sql.DB) *messageRepository {
	return &messageRepository{db: sqlx.NewDb(db, "postgres")}
}

type messageRow struct {
	ID         string       `db:"id"`
	SenderID   string       `db:"sender_id"`
	ReceiverID string       `db:"receiver_id"`
	Content    string       `db:"content"`
	CreatedAt  time.Time    `db:"created_at"`
	IsRead     bool         `db:"is_read"`
	ReadAt     sql.NullTime `db:"read_at"`
}

func (r messageRow) message() messaging.Message {
	msg := messaging.Message{
		ID:         r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Content:    r.Content,
		CreatedAt:  r.CreatedAt,
		IsRead:     r.IsRead,
	}
	if r.ReadAt.Valid {
		t := r.ReadAt.Time
		msg.ReadAt = &t
	}
	return msg
}

func (repo messageRepository) CreateMessage(ctx context.Context, msg messaging.Message) (messaging.Message, error) {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO message (id, sender_id, receiver_id, content, created_at, is_read) VALUES ($1, $2, $3, $4, $5, FALSE)`,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return messaging.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func (repo messageRepository) QueryConversation(ctx context.Context, a, b string) ([]messaging.Message, error) {
	var rows []messageRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM message
		 WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		 ORDER BY created_at`,
		a, b,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying conversation")
	}
	return rowsToMessages(rows), nil
}

func (repo messageRepository) QueryInvolving(ctx context.Context, accountID string) ([]messaging.Message, error) {
	var rows []messageRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM message WHERE sender_id = $1 OR receiver_id = $1 ORDER BY created_at`,
		accountID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	return rowsToMessages(rows), nil
}

// MarkConversationRead only touches rows still unread so read_at is set once
// and a repeat call returns nothing.
func (repo messageRepository) MarkConversationRead(ctx context.Context, receiverID, senderID string, at time.Time) ([]messaging.Message, error) {
	var rows []messageRow
	err := repo.db.SelectContext(ctx, &rows,
		`UPDATE message SET is_read = TRUE, read_at = $3
		 WHERE receiver_id = $1 AND sender_id = $2 AND NOT is_read
		 RETURNING *`,
		receiverID, senderID, at.UTC(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "marking conversation read")
	}
	return rowsToMessages(rows), nil
}

func rowsToMessages(rows []messageRow) []messaging.Message {
	msgs := make([]messaging.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.message())
	}
	return msgs
}

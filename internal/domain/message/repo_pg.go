package message

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumivita/portal/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const msgCols = `id, sender_id, recipient_id, body, read_at, created_at`

func scanMsg(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &m.ReadAt, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &m, err
}

func (r *repoPG) Create(ctx context.Context, m *Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO message (id, sender_id, recipient_id, body)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at`,
		m.ID, m.SenderID, m.RecipientID, m.Body).Scan(&m.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	return scanMsg(r.conn(ctx).QueryRow(ctx,
		`SELECT `+msgCols+` FROM message WHERE id = $1`, id))
}

func (r *repoPG) ListConversation(ctx context.Context, a, b uuid.UUID) ([]*Message, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+msgCols+` FROM message
		WHERE (sender_id = $1 AND recipient_id = $2)
		   OR (sender_id = $2 AND recipient_id = $1)
		ORDER BY created_at ASC, id ASC`, a, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m, err := scanMsg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repoPG) ListThreads(ctx context.Context, userID uuid.UUID) ([]*Thread, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		WITH convo AS (
			SELECT `+msgCols+`,
				CASE WHEN sender_id = $1 THEN recipient_id ELSE sender_id END AS peer_id
			FROM message
			WHERE sender_id = $1 OR recipient_id = $1
		), latest AS (
			SELECT DISTINCT ON (peer_id) * FROM convo
			ORDER BY peer_id, created_at DESC, id DESC
		), unread AS (
			SELECT sender_id AS peer_id, COUNT(*) AS n FROM message
			WHERE recipient_id = $1 AND read_at IS NULL
			GROUP BY sender_id
		)
		SELECT l.id, l.sender_id, l.recipient_id, l.body, l.read_at, l.created_at,
			l.peer_id, COALESCE(u.n, 0)
		FROM latest l LEFT JOIN unread u USING (peer_id)
		ORDER BY l.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Thread
	for rows.Next() {
		var m Message
		var t Thread
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &m.ReadAt,
			&m.CreatedAt, &t.PeerID, &t.Unread); err != nil {
			return nil, err
		}
		t.LastMessage = &m
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *repoPG) MarkRead(ctx context.Context, userID, peerID uuid.UUID) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE message SET read_at = NOW()
		WHERE recipient_id = $1 AND sender_id = $2 AND read_at IS NULL`,
		userID, peerID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *repoPG) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM message
		WHERE recipient_id = $1 AND read_at IS NULL`, userID).Scan(&n)
	return n, err
}

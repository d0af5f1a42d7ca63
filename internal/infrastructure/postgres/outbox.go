package postgres

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/eventcodec"

	"github.com/jmoiron/sqlx"
)

const defaultLease = 30 * time.Second

type outboxRow struct {
	ID        int64     `db:"id"`
	EventName string    `db:"event_name"`
	EventKey  string    `db:"event_key"`
	Payload   []byte    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}

// recordEvents appends events to the outbox inside tx.
func recordEvents(ctx context.Context, tx *sqlx.Tx, events ...domoutbox.Event) error {
	for _, e := range events {
		if e == nil {
			continue
		}
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("postgres: encode %s: %w", e.EventName(), err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO outbox (event_name, event_key, payload) VALUES ($1, $2, $3)`,
			e.EventName(), domoutbox.KeyOf(e), payload); err != nil {
			return fmt.Errorf("postgres: record %s: %w", e.EventName(), err)
		}
	}
	return nil
}

// OutboxStore hands recorded events to the relay. Pending leases the rows it returns,
// so relays of several processes do not pick up the same message while it is in flight.
type OutboxStore struct {
	db       *sqlx.DB
	decoders map[string]eventcodec.Decoder
	lease    time.Duration
}

func NewOutboxStore(db *sqlx.DB) *OutboxStore {
	return &OutboxStore{db: db, decoders: eventcodec.Saga(), lease: defaultLease}
}

func (s *OutboxStore) Pending(ctx context.Context, limit int) ([]domoutbox.Message, error) {
	var rows []outboxRow
	err := s.db.SelectContext(ctx, &rows, `UPDATE outbox SET locked_until = now() + make_interval(secs => $2)
		WHERE id IN (
			SELECT id FROM outbox
			WHERE sent_at IS NULL AND (locked_until IS NULL OR locked_until < now())
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED)
		RETURNING id, event_name, event_key, payload, created_at`, limit, s.lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch outbox: %w", err)
	}
	return s.messages(rows), nil
}

func (s *OutboxStore) messages(rows []outboxRow) []domoutbox.Message {
	out := make([]domoutbox.Message, 0, len(rows))
	for _, r := range rows {
		m := domoutbox.Message{ID: r.ID, Name: r.EventName, Key: r.EventKey, CreatedAt: r.CreatedAt}
		if evt, err := eventcodec.Decode(s.decoders, r.EventName, r.Payload); err == nil {
			m.Event = evt
		}
		out = append(out, m)
	}
	// RETURNING does not keep the subquery order.
	sortByID(out)
	return out
}

func (s *OutboxStore) MarkSent(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE outbox SET sent_at = now(), locked_until = NULL WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: mark outbox %d sent: %w", id, err)
	}
	return nil
}

func sortByID(msgs []domoutbox.Message) {
	slices.SortFunc(msgs, func(a, b domoutbox.Message) int { return cmp.Compare(a.ID, b.ID) })
}

package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/xpertseller/alertkit/pkg/pg"
	"github.com/xpertseller/alertkit/svc/alerting"
)

var _ alerting.Ledger = (*Store)(nil)

const alertColumns = `id, recipient_id, template_id, variables, channels, urgency,
	broadcast_mode, send_to_all, scheduled_at, expires_at, status, created_at, updated_at`

const attemptColumns = `id, alert_id, recipient_id, channel, seq, status, provider_message_id,
	failure_reason, sent_at, delivered_at, opened_at, clicked_at, failed_at, created_at, updated_at`

func (s *Store) CreateAlert(ctx context.Context, a alerting.Alert) error {
	vars, err := json.Marshal(a.Variables)
	if err != nil {
		return fmt.Errorf("sqlstore: encode variables: %w", err)
	}
	chans, err := json.Marshal(a.Channels)
	if err != nil {
		return fmt.Errorf("sqlstore: encode channels: %w", err)
	}

	res, err := s.exec(ctx, `INSERT INTO alerts (`+alertColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		a.ID, a.RecipientID, a.TemplateID, string(vars), string(chans), string(a.Urgency),
		boolInt(a.BroadcastMode), boolInt(a.SendToAll), millis(a.ScheduledAt), nullMillis(a.ExpiresAt),
		string(a.Status), millis(a.CreatedAt), millis(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: insert alert: %w", err)
	}
	return insertedOne(res)
}

func (s *Store) GetAlert(ctx context.Context, id string) (alerting.Alert, error) {
	row := s.queryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return alerting.Alert{}, alerting.ErrAlertNotFound
	}
	return a, err
}

func (s *Store) TransitionAlert(ctx context.Context, id string, from, to alerting.AlertStatus, at time.Time) (bool, error) {
	res, err := s.exec(ctx, `UPDATE alerts SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), millis(at), id, string(from))
	if err != nil {
		return false, fmt.Errorf("sqlstore: transition alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	ok, err := s.exists(ctx, "alerts", id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, alerting.ErrAlertNotFound
	}
	return false, nil
}

func (s *Store) DueAlerts(ctx context.Context, now time.Time, limit int) ([]alerting.Alert, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := s.query(ctx, `SELECT `+alertColumns+` FROM alerts
		WHERE status = ? AND scheduled_at <= ?
		ORDER BY scheduled_at, id
		LIMIT ?`, string(alerting.AlertPending), millis(now), limit)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: due alerts: %w", err)
	}
	defer rows.Close()

	var out []alerting.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CountAlerts(ctx context.Context, recipientID string, since time.Time) (int, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM alerts WHERE recipient_id = ? AND created_at >= ?`,
		recipientID, millis(since)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: count alerts: %w", err)
	}
	return n, nil
}

func (s *Store) RecordAttempt(ctx context.Context, a alerting.DeliveryAttempt) error {
	res, err := s.exec(ctx, `INSERT INTO delivery_attempts (`+attemptColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		a.ID, a.AlertID, a.RecipientID, string(a.Channel), a.Sequence, string(a.Status), nullString(a.ProviderMessageID),
		a.FailureReason, nullMillis(a.SentAt), nullMillis(a.DeliveredAt), nullMillis(a.OpenedAt),
		nullMillis(a.ClickedAt), nullMillis(a.FailedAt), millis(a.CreatedAt), millis(a.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("sqlstore: insert attempt %s step %d: %w", a.AlertID, a.Sequence, alerting.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("sqlstore: insert attempt: %w", err)
	}
	return insertedOne(res)
}

func (s *Store) GetAttempt(ctx context.Context, id string) (alerting.DeliveryAttempt, error) {
	row := s.queryRow(ctx, `SELECT `+attemptColumns+` FROM delivery_attempts WHERE id = ?`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return alerting.DeliveryAttempt{}, alerting.ErrAttemptNotFound
	}
	return a, err
}

func (s *Store) FindAttemptByProviderMessageID(ctx context.Context, providerMessageID string) (alerting.DeliveryAttempt, error) {
	if providerMessageID == "" {
		return alerting.DeliveryAttempt{}, alerting.ErrAttemptNotFound
	}
	row := s.queryRow(ctx, `SELECT `+attemptColumns+` FROM delivery_attempts
		WHERE provider_message_id = ?
		ORDER BY created_at DESC, seq DESC, id DESC
		LIMIT 1`, providerMessageID)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return alerting.DeliveryAttempt{}, alerting.ErrAttemptNotFound
	}
	return a, err
}

func (s *Store) UpdateAttempt(ctx context.Context, a alerting.DeliveryAttempt, expected alerting.AttemptStatus) error {
	res, err := s.exec(ctx, `UPDATE delivery_attempts SET
			status = ?, provider_message_id = ?, failure_reason = ?,
			sent_at = ?, delivered_at = ?, opened_at = ?, clicked_at = ?, failed_at = ?,
			updated_at = ?
		WHERE id = ? AND status = ?`,
		string(a.Status), nullString(a.ProviderMessageID), a.FailureReason,
		nullMillis(a.SentAt), nullMillis(a.DeliveredAt), nullMillis(a.OpenedAt),
		nullMillis(a.ClickedAt), nullMillis(a.FailedAt), millis(a.UpdatedAt),
		a.ID, string(expected),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: update attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	ok, err := s.exists(ctx, "delivery_attempts", a.ID)
	if err != nil {
		return err
	}
	if !ok {
		return alerting.ErrAttemptNotFound
	}
	return alerting.ErrConcurrentUpdate
}

func (s *Store) ListAttempts(ctx context.Context, alertID string) ([]alerting.DeliveryAttempt, error) {
	return s.listAttempts(ctx, `SELECT `+attemptColumns+` FROM delivery_attempts
		WHERE alert_id = ?
		ORDER BY seq, created_at, id`, alertID)
}

func (s *Store) QueryAttempts(ctx context.Context, recipientID string, since time.Time) ([]alerting.DeliveryAttempt, error) {
	return s.listAttempts(ctx, `SELECT `+attemptColumns+` FROM delivery_attempts
		WHERE recipient_id = ? AND created_at >= ?
		ORDER BY created_at, alert_id, seq, id`, recipientID, millis(since))
}

func (s *Store) listAttempts(ctx context.Context, query string, args ...any) ([]alerting.DeliveryAttempt, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list attempts: %w", err)
	}
	defer rows.Close()

	var out []alerting.DeliveryAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAlert(row scanner) (alerting.Alert, error) {
	var (
		a                    alerting.Alert
		vars, chans          string
		urgency, status      string
		broadcast, sendToAll int64
		scheduled, created   int64
		updated              int64
		expires              sql.NullInt64
	)
	err := row.Scan(&a.ID, &a.RecipientID, &a.TemplateID, &vars, &chans, &urgency,
		&broadcast, &sendToAll, &scheduled, &expires, &status, &created, &updated)
	if err != nil {
		return alerting.Alert{}, err
	}
	if err := json.Unmarshal([]byte(vars), &a.Variables); err != nil {
		return alerting.Alert{}, fmt.Errorf("sqlstore: decode variables of %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(chans), &a.Channels); err != nil {
		return alerting.Alert{}, fmt.Errorf("sqlstore: decode channels of %s: %w", a.ID, err)
	}
	a.Urgency = alerting.Urgency(urgency)
	a.Status = alerting.AlertStatus(status)
	a.BroadcastMode = broadcast != 0
	a.SendToAll = sendToAll != 0
	a.ScheduledAt = fromMillis(scheduled)
	a.ExpiresAt = fromNullMillis(expires)
	a.CreatedAt = fromMillis(created)
	a.UpdatedAt = fromMillis(updated)
	return a, nil
}

func scanAttempt(row scanner) (alerting.DeliveryAttempt, error) {
	var (
		a                                      alerting.DeliveryAttempt
		channel, status                        string
		providerID                             sql.NullString
		sent, delivered, opened, clicked, fail sql.NullInt64
		created, updated                       int64
	)
	err := row.Scan(&a.ID, &a.AlertID, &a.RecipientID, &channel, &a.Sequence, &status, &providerID,
		&a.FailureReason, &sent, &delivered, &opened, &clicked, &fail, &created, &updated)
	if err != nil {
		return alerting.DeliveryAttempt{}, err
	}
	a.Channel = alerting.ChannelType(channel)
	a.Status = alerting.AttemptStatus(status)
	a.ProviderMessageID = providerID.String
	a.SentAt = fromNullMillis(sent)
	a.DeliveredAt = fromNullMillis(delivered)
	a.OpenedAt = fromNullMillis(opened)
	a.ClickedAt = fromNullMillis(clicked)
	a.FailedAt = fromNullMillis(fail)
	a.CreatedAt = fromMillis(created)
	a.UpdatedAt = fromMillis(updated)
	return a, nil
}

// isUniqueViolation reports a unique constraint failure from either driver.
// ON CONFLICT (id) absorbs primary key clashes, so this fires for secondary
// unique indexes only.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return pg.IsDuplicateKeyError(err) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func insertedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return alerting.ErrAlreadyExists
	}
	return nil
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

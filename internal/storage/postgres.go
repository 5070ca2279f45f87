package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/presence/internal/config"
	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/recognize"
)

// ErrDuplicateAttendance is returned when an attendance record already
// exists for the (identity, date) pair.
var ErrDuplicateAttendance = errors.New("attendance already recorded for this identity today")

const pgUniqueViolation = "23505"

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Identities ---

// UpsertIdentity creates the identity row or refreshes its display name.
func (s *PostgresStore) UpsertIdentity(ctx context.Context, id, name string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO identities (id, name) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = now()`,
		id, name)
	if err != nil {
		return fmt.Errorf("upsert identity: %w", err)
	}
	return nil
}

// DeleteIdentity removes the bare identity row, used to roll back a row
// created by an enrollment whose template never persisted.
func (s *PostgresStore) DeleteIdentity(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetIdentity(ctx context.Context, id string) (*models.Identity, error) {
	ident := &models.Identity{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(label, -1), created_at, updated_at FROM identities WHERE id = $1`, id,
	).Scan(&ident.ID, &ident.Name, &ident.Label, &ident.CreatedAt, &ident.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return ident, nil
}

func (s *PostgresStore) ListIdentities(ctx context.Context) ([]models.Identity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, COALESCE(label, -1), created_at, updated_at FROM identities ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var identities []models.Identity
	for rows.Next() {
		var ident models.Identity
		if err := rows.Scan(&ident.ID, &ident.Name, &ident.Label, &ident.CreatedAt, &ident.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, ident)
	}
	return identities, nil
}

// --- Enrollment state (recognize.Store) ---

// SaveEnrollment replaces the identity's template rows, records its label,
// and advances the label counter, all in one transaction so the persisted
// state always matches the in-memory model.
func (s *PostgresStore) SaveEnrollment(ctx context.Context, identityID string, label, nextLabel int, templates []*recognize.Template) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE identities SET label = $1, updated_at = now() WHERE id = $2`,
		label, identityID); err != nil {
		return fmt.Errorf("set identity label: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM face_templates WHERE identity_id = $1`, identityID); err != nil {
		return fmt.Errorf("clear templates: %w", err)
	}

	for pos, tpl := range templates {
		vec := pgvector.NewVector(tpl.Descriptor)
		if _, err := tx.Exec(ctx,
			`INSERT INTO face_templates (id, identity_id, position, pix, descriptor, source_key, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			tpl.ID, identityID, pos, tpl.Pix, vec, tpl.SourceKey, tpl.CreatedAt); err != nil {
			return fmt.Errorf("insert template %d: %w", pos, err)
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO classifier_state (id, next_label) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET next_label = GREATEST(classifier_state.next_label, EXCLUDED.next_label)`,
		nextLabel); err != nil {
		return fmt.Errorf("advance label counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit enrollment tx: %w", err)
	}
	return nil
}

// DeleteEnrollment removes the identity and its templates. The label
// counter is left untouched so retired labels are never reused.
func (s *PostgresStore) DeleteEnrollment(ctx context.Context, identityID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin removal tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM face_templates WHERE identity_id = $1`, identityID); err != nil {
		return fmt.Errorf("delete templates: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM identities WHERE id = $1`, identityID); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit removal tx: %w", err)
	}
	return nil
}

// LoadEnrollments reads every identity's ordered template list and the
// label counter.
func (s *PostgresStore) LoadEnrollments(ctx context.Context) (*recognize.Snapshot, error) {
	snap := &recognize.Snapshot{}

	err := s.pool.QueryRow(ctx,
		`SELECT next_label FROM classifier_state WHERE id = 1`).Scan(&snap.NextLabel)
	if err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("load label counter: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT i.id, i.label, t.id, t.pix, t.source_key, t.created_at
		 FROM identities i
		 JOIN face_templates t ON t.identity_id = i.id
		 WHERE i.label IS NOT NULL
		 ORDER BY i.id, t.position`)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	defer rows.Close()

	byIdentity := map[string]*recognize.IdentityTemplates{}
	var order []string
	for rows.Next() {
		var (
			identityID string
			label      int
			tplID      uuid.UUID
			pix        []byte
			sourceKey  string
			createdAt  time.Time
		)
		if err := rows.Scan(&identityID, &label, &tplID, &pix, &sourceKey, &createdAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}

		it, ok := byIdentity[identityID]
		if !ok {
			it = &recognize.IdentityTemplates{IdentityID: identityID, Label: label}
			byIdentity[identityID] = it
			order = append(order, identityID)
		}
		it.Templates = append(it.Templates, recognize.TemplateFromPix(tplID, pix, sourceKey, createdAt))
	}

	for _, id := range order {
		snap.Identities = append(snap.Identities, *byIdentity[id])
	}
	return snap, nil
}

// --- Attendance ---

// InsertAttendance commits one check-in. The (identity_id, date) unique
// constraint enforces the one-record-per-day invariant at commit time.
func (s *PostgresStore) InsertAttendance(ctx context.Context, rec *models.AttendanceRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.CreatedAt = time.Now()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO attendance (id, identity_id, name, date, check_in_at, method, confidence, is_offline, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.IdentityID, rec.Name, rec.Date, rec.CheckInAt,
		rec.Method, rec.Confidence, rec.IsOffline, rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateAttendance
		}
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAttendance(ctx context.Context, from, to *time.Time, identityID *string, limit, offset int) ([]models.AttendanceRecord, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	baseWhere := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	if from != nil {
		baseWhere += fmt.Sprintf(" AND date >= $%d", argIdx)
		args = append(args, *from)
		argIdx++
	}
	if to != nil {
		baseWhere += fmt.Sprintf(" AND date <= $%d", argIdx)
		args = append(args, *to)
		argIdx++
	}
	if identityID != nil {
		baseWhere += fmt.Sprintf(" AND identity_id = $%d", argIdx)
		args = append(args, *identityID)
		argIdx++
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM attendance " + baseWhere
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT id, identity_id, name, date, check_in_at, method, confidence, is_offline, created_at
		 FROM attendance %s ORDER BY date DESC, check_in_at DESC LIMIT $%d OFFSET $%d`,
		baseWhere, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var records []models.AttendanceRecord
	for rows.Next() {
		var rec models.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.IdentityID, &rec.Name, &rec.Date, &rec.CheckInAt,
			&rec.Method, &rec.Confidence, &rec.IsOffline, &rec.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, rec)
	}
	return records, total, nil
}

// CountAttendanceOn returns the number of distinct identities checked in on
// the given date.
func (s *PostgresStore) CountAttendanceOn(ctx context.Context, date time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT identity_id) FROM attendance WHERE date = $1`, date).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return count, nil
}

// --- Notifications ---

func (s *PostgresStore) CreateNotification(ctx context.Context, recipient, subject, body string) (*models.Notification, error) {
	n := &models.Notification{
		ID:        uuid.New(),
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		Status:    models.NotificationPending,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO notifications (id, recipient, subject, body, status)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`,
		n.ID, n.Recipient, n.Subject, n.Body, n.Status,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) GetNotification(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	n := &models.Notification{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, recipient, subject, body, status, attempts, COALESCE(last_error, ''), created_at, updated_at
		 FROM notifications WHERE id = $1`, id,
	).Scan(&n.ID, &n.Recipient, &n.Subject, &n.Body, &n.Status, &n.Attempts, &n.LastError, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status models.NotificationStatus, attempts int, lastError string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE notifications SET status = $1, attempts = $2, last_error = NULLIF($3, ''), updated_at = now() WHERE id = $4`,
		status, attempts, lastError, id)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	return nil
}

// NotificationCounts returns per-status counts for the queue status surface.
func (s *PostgresStore) NotificationCounts(ctx context.Context) (map[models.NotificationStatus]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM notifications GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}
	defer rows.Close()

	counts := map[models.NotificationStatus]int{}
	for rows.Next() {
		var status models.NotificationStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan notification count: %w", err)
		}
		counts[status] = count
	}
	return counts, nil
}

// ListFailedNotifications returns failed notifications eligible for retry.
func (s *PostgresStore) ListFailedNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, recipient, subject, body, status, attempts, COALESCE(last_error, ''), created_at, updated_at
		 FROM notifications WHERE status = 'failed' ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list failed notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.Recipient, &n.Subject, &n.Body, &n.Status, &n.Attempts,
			&n.LastError, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/fitcoach/internal/domain"
	"github.com/ashureev/fitcoach/internal/shared"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLStore implements Repository on top of database/sql.
type SQLStore struct {
	db *sql.DB
	d  dialect
}

var _ Repository = (*SQLStore)(nil)

// Open creates a Repository for the configured driver.
func Open(ctx context.Context, opts Options) (*SQLStore, error) {
	var (
		s   *SQLStore
		err error
	)
	switch opts.Driver {
	case "", "sqlite":
		s, err = NewSQLite(opts.DSN)
	case "postgres":
		s, err = NewPostgres(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if opts.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewSQLite opens a SQLite-backed repository at dbPath.
func NewSQLite(dbPath string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL lets the chat reads proceed while a turn is being written.
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLStore{db: db, d: sqliteDialect}, nil
}

// NewPostgres opens a Postgres-backed repository.
func NewPostgres(dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLStore{db: db, d: postgresDialect}, nil
}

// Driver returns the name of the backing SQL dialect.
func (s *SQLStore) Driver() string {
	return s.d.name
}

// Migrate creates the schema if it does not exist yet.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// RecentChatMessages returns up to limit chat log entries for a user, newest first.
func (s *SQLStore) RecentChatMessages(ctx context.Context, userID string, limit int) ([]*domain.ChatMessage, error) {
	query := s.d.rebind(`
		SELECT id, user_id, role, message_text, metadata, created_at
		FROM chat_history WHERE user_id = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?`)

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close chat history rows", "error", closeErr)
		}
	}()

	var messages []*domain.ChatMessage
	for rows.Next() {
		var (
			m         domain.ChatMessage
			role      string
			metadata  string
			createdAt int64
		)
		if err := rows.Scan(&m.ID, &m.UserID, &role, &m.MessageText, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat history row: %w", err)
		}
		m.Role = domain.Role(role)
		m.CreatedAt = time.UnixMilli(createdAt).UTC()
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &m.Metadata); err != nil {
				slog.Warn("discarding malformed chat metadata", "message_id", m.ID, "error", err)
			}
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat history: %w", err)
	}
	return messages, nil
}

// AppendChatTurn appends the user message and the assistant reply in one transaction.
func (s *SQLStore) AppendChatTurn(ctx context.Context, user, assistant *domain.ChatMessage) error {
	if user == nil || assistant == nil {
		return errors.New("append chat turn: both messages are required")
	}
	if user.UserID == "" || user.UserID != assistant.UserID {
		return errors.New("append chat turn: messages must belong to the same user")
	}

	now := time.Now().UTC()
	for _, m := range []*domain.ChatMessage{user, assistant} {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		if m.Metadata == nil {
			m.Metadata = map[string]any{}
		}
	}
	if assistant.CreatedAt.Before(user.CreatedAt) {
		assistant.CreatedAt = user.CreatedAt
	}

	query := s.d.rebind(`
		INSERT INTO chat_history (id, user_id, role, message_text, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)

	return s.withRetry(ctx, "append chat turn", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			for _, m := range []*domain.ChatMessage{user, assistant} {
				metadata, err := json.Marshal(m.Metadata)
				if err != nil {
					return fmt.Errorf("encode metadata: %w", err)
				}
				if _, err := tx.ExecContext(ctx, query,
					m.ID, m.UserID, string(m.Role), m.MessageText, string(metadata), m.CreatedAt.UnixMilli(),
				); err != nil {
					return fmt.Errorf("insert %s message: %w", m.Role, err)
				}
			}
			return nil
		})
	})
}

// RecentSessions returns up to limit sessions of an athlete with their metrics, newest first.
func (s *SQLStore) RecentSessions(ctx context.Context, athleteID string, limit int) ([]*domain.Session, error) {
	query := s.d.rebind(`
		SELECT id, athlete_id, date, type, duration_minutes, notes, created_at
		FROM sessions WHERE athlete_id = ?
		ORDER BY date DESC, seq DESC
		LIMIT ?`)

	rows, err := s.db.QueryContext(ctx, query, athleteID, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close sessions rows", "error", closeErr)
		}
	}()

	var sessions []*domain.Session
	byID := make(map[string]*domain.Session)
	for rows.Next() {
		var (
			sess            domain.Session
			date, createdAt int64
			sessionType     string
			duration        sql.NullInt64
			notes           sql.NullString
		)
		if err := rows.Scan(&sess.ID, &sess.AthleteID, &date, &sessionType, &duration, &notes, &createdAt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sess.Date = time.UnixMilli(date).UTC()
		sess.CreatedAt = time.UnixMilli(createdAt).UTC()
		sess.Type = domain.WorkoutType(sessionType)
		if duration.Valid {
			d := int(duration.Int64)
			sess.DurationMinutes = &d
		}
		sess.Notes = notes.String
		sess.Metrics = []domain.SessionMetric{}
		sessions = append(sessions, &sess)
		byID[sess.ID] = &sess
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	if len(sessions) == 0 {
		return sessions, nil
	}
	if err := s.attachMetrics(ctx, byID); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *SQLStore) attachMetrics(ctx context.Context, byID map[string]*domain.Session) error {
	args := make([]any, 0, len(byID))
	for id := range byID {
		args = append(args, id)
	}
	query := s.d.rebind(`
		SELECT id, session_id, metric_name, value, unit
		FROM session_metrics WHERE session_id IN (` + placeholders(len(args)) + `)
		ORDER BY metric_name ASC, id ASC`)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query session metrics: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session metrics rows", "error", closeErr)
		}
	}()

	for rows.Next() {
		var (
			m    domain.SessionMetric
			unit sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Name, &m.Value, &unit); err != nil {
			return fmt.Errorf("scan session metric row: %w", err)
		}
		m.Unit = unit.String
		if sess, ok := byID[m.SessionID]; ok {
			sess.Metrics = append(sess.Metrics, m)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate session metrics: %w", err)
	}
	return nil
}

// CreateSession stores a session and its metrics in one transaction.
func (s *SQLStore) CreateSession(ctx context.Context, session *domain.Session) error {
	if session == nil || session.AthleteID == "" {
		return errors.New("create session: athlete id is required")
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	for i := range session.Metrics {
		if session.Metrics[i].ID == "" {
			session.Metrics[i].ID = uuid.NewString()
		}
		session.Metrics[i].SessionID = session.ID
	}

	insertSession := s.d.rebind(`
		INSERT INTO sessions (id, athlete_id, date, type, duration_minutes, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	insertMetric := s.d.rebind(`
		INSERT INTO session_metrics (id, session_id, metric_name, value, unit)
		VALUES (?, ?, ?, ?, ?)`)

	var duration, notes any
	if session.DurationMinutes != nil {
		duration = *session.DurationMinutes
	}
	if session.Notes != "" {
		notes = session.Notes
	}

	return s.withRetry(ctx, "create session", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, insertSession,
				session.ID, session.AthleteID, session.Date.UnixMilli(), string(session.Type),
				duration, notes, session.CreatedAt.UnixMilli(),
			); err != nil {
				return fmt.Errorf("insert session: %w", err)
			}
			for _, m := range session.Metrics {
				var unit any
				if m.Unit != "" {
					unit = m.Unit
				}
				if _, err := tx.ExecContext(ctx, insertMetric, m.ID, m.SessionID, m.Name, m.Value, unit); err != nil {
					return fmt.Errorf("insert session metric: %w", err)
				}
			}
			return nil
		})
	})
}

// GetAthleteProfile returns the profile of a user, or nil when none exists.
func (s *SQLStore) GetAthleteProfile(ctx context.Context, userID string) (*domain.AthleteProfile, error) {
	query := s.d.rebind(`
		SELECT user_id, sport, position, goals, created_at, updated_at
		FROM athlete_profiles WHERE user_id = ?`)

	var (
		p                    domain.AthleteProfile
		sport, pos, goals    sql.NullString
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&p.UserID, &sport, &pos, &goals, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan athlete profile: %w", err)
	}

	p.Sport = sport.String
	p.Position = pos.String
	p.Goals = goals.String
	p.CreatedAt = time.UnixMilli(createdAt).UTC()
	p.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &p, nil
}

// UpsertAthleteProfile creates or updates the profile of a user.
func (s *SQLStore) UpsertAthleteProfile(ctx context.Context, profile *domain.AthleteProfile) error {
	if profile == nil || profile.UserID == "" {
		return errors.New("upsert athlete profile: user id is required")
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	query := s.d.rebind(`
		INSERT INTO athlete_profiles (user_id, sport, position, goals, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			sport = excluded.sport,
			position = excluded.position,
			goals = excluded.goals,
			updated_at = excluded.updated_at`)

	return s.withRetry(ctx, "upsert athlete profile", func() error {
		_, err := s.db.ExecContext(ctx, query,
			profile.UserID, nullable(profile.Sport), nullable(profile.Position), nullable(profile.Goals),
			profile.CreatedAt.UnixMilli(), profile.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("upsert athlete profile: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Warn("transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// withRetry re-runs a write that lost a lock race, with exponential backoff.
func (s *SQLStore) withRetry(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 400 * time.Millisecond
	b.MaxElapsedTime = 0

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := fn()
		if err == nil || !shared.IsRetryableStoreError(err) {
			if err != nil {
				return backoff.Permanent(err)
			}
			return nil
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, 2), ctx), func(err error, delay time.Duration) {
		slog.Debug("store write conflicted, retrying", "op", op, "attempt", attempt, "delay", delay, "error", err)
	})
	if err != nil && attempt > 1 {
		return fmt.Errorf("%s after %d attempts: %w", op, attempt, err)
	}
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

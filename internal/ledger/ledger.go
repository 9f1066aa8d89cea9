package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Entry is one accepted submission as recorded for moderators.
type Entry struct {
	SubmissionID   string
	Path           string
	Title          string
	StartDate      string
	SubmitterName  string
	SubmitterEmail string
	ClientIdentity string
	PublishMode    string
	Branch         string
	CommitSHA      string
	PullRequestURL string
	PathCollision  bool
	SubmittedAt    time.Time
}

// Recorder stores accepted submissions.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// ErrDuplicate is returned when the submission ID is already recorded.
var ErrDuplicate = errors.New("submission already recorded")

func (l *PostgresLedger) Record(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO event_submissions (
			id, submission_id, path, title, start_date, submitter_name, submitter_email,
			client_identity, publish_mode, branch, commit_sha, pull_request_url, path_collision, submitted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := l.db.ExecContext(ctx, query,
		uuid.New().String(), entry.SubmissionID, entry.Path, entry.Title, entry.StartDate,
		entry.SubmitterName, nullable(entry.SubmitterEmail), entry.ClientIdentity,
		entry.PublishMode, entry.Branch, nullable(entry.CommitSHA), nullable(entry.PullRequestURL),
		entry.PathCollision, entry.SubmittedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrDuplicate, entry.SubmissionID)
		}
		return fmt.Errorf("failed to record submission: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (l *PostgresLedger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT submission_id, path, title, to_char(start_date, 'YYYY-MM-DD'), submitter_name,
		       COALESCE(submitter_email, ''), client_identity, publish_mode, branch,
		       COALESCE(commit_sha, ''), COALESCE(pull_request_url, ''), path_collision, submitted_at
		FROM event_submissions
		ORDER BY submitted_at DESC
		LIMIT $1
	`

	rows, err := l.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.SubmissionID, &e.Path, &e.Title, &e.StartDate, &e.SubmitterName,
			&e.SubmitterEmail, &e.ClientIdentity, &e.PublishMode, &e.Branch,
			&e.CommitSHA, &e.PullRequestURL, &e.PathCollision, &e.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return entries, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Nop discards entries. Used when no database is configured.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

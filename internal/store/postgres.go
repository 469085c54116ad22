package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/crashbot/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const revisionColumns = `m.id, m.revision_number, m.modified_by, m.modified_at, m.reported_at, m.closed_at,
	m.status::text, m.severity::text, m.title, m.description, m.point, m.contact, m.rca_link`

// latestJoin selects the highest revision of every incident.
const latestJoin = `FROM (
	SELECT id, MAX(revision_number) AS last
	FROM incidents
	GROUP BY id
) t JOIN incidents m ON m.id = t.id AND t.last = m.revision_number`

// --- Reads ---

func (s *PostgresStore) ListLatestRevisions(ctx context.Context, filter RevisionFilter) ([]*models.Revision, error) {
	query := `SELECT ` + revisionColumns + ` ` + latestJoin
	var args []any
	if !filter.IncludeInvalid {
		query += ` WHERE m.status <> $1::status_type`
		args = append(args, string(models.StatusInvalid))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list latest revisions: %w", err)
	}
	defer rows.Close()

	var revs []*models.Revision
	for rows.Next() {
		r, err := scanRevision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		revs = append(revs, r)
	}
	return revs, rows.Err()
}

func (s *PostgresStore) GetLatestRevision(ctx context.Context, id int64) (*models.Revision, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+revisionColumns+`
		 FROM incidents m WHERE m.id = $1 ORDER BY m.revision_number DESC LIMIT 1`, id)
	r, err := scanRevision(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest revision: %w", err)
	}
	return r, nil
}

// ListOpenIncidents returns the topic columns of every incident whose latest
// revision is open. User and timestamp fields other than reported_at are left zero.
func (s *PostgresStore) ListOpenIncidents(ctx context.Context) ([]*models.Revision, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT m.id, m.revision_number, m.title, m.severity::text, m.description, m.reported_at
		 `+latestJoin+`
		 WHERE m.status = $1::status_type`, string(models.StatusOpen))
	if err != nil {
		return nil, fmt.Errorf("list open incidents: %w", err)
	}
	defer rows.Close()

	var revs []*models.Revision
	for rows.Next() {
		var (
			r   models.Revision
			sev string
		)
		if err := rows.Scan(&r.ID, &r.RevisionNumber, &r.Title, &sev, &r.Description, &r.ReportedAt); err != nil {
			return nil, fmt.Errorf("scan open incident: %w", err)
		}
		r.Severity = models.Severity(sev)
		r.Status = models.StatusOpen
		revs = append(revs, &r)
	}
	return revs, rows.Err()
}

// --- Writes ---

// CreateIncident inserts revision 0 of a new incident and returns the id the
// database assigned to it.
func (s *PostgresStore) CreateIncident(ctx context.Context, rev *models.Revision) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO incidents (revision_number, modified_by, reported_at, closed_at, status, severity,
		   title, description, point, contact, rca_link)
		 VALUES (0, $1, $2, $3, $4::status_type, $5::severity_type, $6, $7, $8, $9, $10)
		 RETURNING id`,
		rev.ModifiedBy, rev.ReportedAt, rev.ClosedAt, string(models.StatusOpen), string(rev.Severity),
		rev.Title, rev.Description, rev.Point, rev.Contact, rev.RCALink,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create incident: %w", err)
	}
	return id, nil
}

// AppendRevision inserts a new revision of an existing incident. The caller sets
// ID and RevisionNumber; a duplicate pair yields ErrRevisionConflict.
func (s *PostgresStore) AppendRevision(ctx context.Context, rev *models.Revision) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO incidents (id, revision_number, modified_by, reported_at, closed_at, status, severity,
		   title, description, point, contact, rca_link)
		 VALUES ($1, $2, $3, $4, $5, $6::status_type, $7::severity_type, $8, $9, $10, $11, $12)`,
		rev.ID, rev.RevisionNumber, rev.ModifiedBy, rev.ReportedAt, rev.ClosedAt,
		string(rev.Status), string(rev.Severity), rev.Title, rev.Description,
		rev.Point, rev.Contact, rev.RCALink)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrRevisionConflict
		}
		return fmt.Errorf("append revision: %w", err)
	}
	return nil
}

func scanRevision(row pgx.Row) (*models.Revision, error) {
	var (
		r        models.Revision
		status   string
		severity string
	)
	if err := row.Scan(&r.ID, &r.RevisionNumber, &r.ModifiedBy, &r.ModifiedAt, &r.ReportedAt, &r.ClosedAt,
		&status, &severity, &r.Title, &r.Description, &r.Point, &r.Contact, &r.RCALink); err != nil {
		return nil, err
	}
	r.Status = models.Status(status)
	r.Severity = models.Severity(severity)
	return &r, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Sumatoshi-tech/defectscope/pkg/dataset"
	"github.com/Sumatoshi-tech/defectscope/pkg/ticket"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    project TEXT NOT NULL,
    upper_bound INTEGER NOT NULL,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS dataset_rows (
    run_id TEXT NOT NULL,
    release_index INTEGER NOT NULL,
    path TEXT NOT NULL,
    loc_touched INTEGER NOT NULL,
    revisions INTEGER NOT NULL,
    fix_count INTEGER NOT NULL,
    loc_added INTEGER NOT NULL,
    max_loc_added INTEGER NOT NULL,
    change_set_size INTEGER NOT NULL,
    max_change_set INTEGER NOT NULL,
    avg_change_set INTEGER NOT NULL,
    avg_loc_added INTEGER NOT NULL,
    buggy INTEGER NOT NULL CHECK(buggy IN (0, 1)),
    PRIMARY KEY (run_id, release_index, path),
    FOREIGN KEY (run_id) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_rows_release ON dataset_rows(run_id, release_index);

CREATE TABLE IF NOT EXISTS defects (
    run_id TEXT NOT NULL,
    ticket_id INTEGER NOT NULL,
    iv INTEGER NOT NULL,
    fv INTEGER NOT NULL,
    estimated INTEGER NOT NULL CHECK(estimated IN (0, 1)),
    PRIMARY KEY (run_id, ticket_id),
    FOREIGN KEY (run_id) REFERENCES runs(id)
);
`

// Run identifies one export in the database.
type Run struct {
	ID         string
	Project    string
	UpperBound int
	CreatedAt  time.Time
}

// Store persists runs into a SQLite database.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the database at dsn and applies the schema.
func OpenStore(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", withForeignKeys(dsn))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	_, err = db.ExecContext(ctx, schema)
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// withForeignKeys adds the foreign_keys pragma to the DSN so that every pooled
// connection enforces the schema's references, not only the first one.
func withForeignKeys(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	return dsn + sep + "_pragma=foreign_keys(1)"
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes the run, its rows and its resolved defects in one transaction.
// estimated lists the tickets whose IV was estimated.
func (s *Store) Save(ctx context.Context, run Run, rows []dataset.Row, defects []ticket.ResolvedDefect, estimated map[int]bool) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (id, project, upper_bound, created_at) VALUES (?, ?, ?, ?)",
		run.ID, run.Project, run.UpperBound, run.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	err = insertRows(ctx, tx, run.ID, rows)
	if err != nil {
		return err
	}

	err = insertDefects(ctx, tx, run.ID, defects, estimated)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, runID string, rows []dataset.Row) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO dataset_rows (
    run_id, release_index, path, loc_touched, revisions, fix_count, loc_added, max_loc_added,
    change_set_size, max_change_set, avg_change_set, avg_loc_added, buggy
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare rows: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		m := row.Metrics

		_, err = stmt.ExecContext(ctx, runID, row.Release, row.Path,
			m[dataset.LOCTouched], m[dataset.Revisions], m[dataset.FixCount],
			m[dataset.LOCAdded], m[dataset.MaxLOCAdded],
			m[dataset.ChangeSetSize], m[dataset.MaxChangeSet],
			m[dataset.AvgChangeSet], m[dataset.AvgLOCAdded], m[dataset.Buggy],
		)
		if err != nil {
			return fmt.Errorf("insert row %d %s: %w", row.Release, row.Path, err)
		}
	}

	return nil
}

func insertDefects(ctx context.Context, tx *sql.Tx, runID string, defects []ticket.ResolvedDefect, estimated map[int]bool) error {
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO defects (run_id, ticket_id, iv, fv, estimated) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare defects: %w", err)
	}
	defer stmt.Close()

	for _, d := range defects {
		est := 0
		if estimated[d.TicketID] {
			est = 1
		}

		_, err = stmt.ExecContext(ctx, runID, d.TicketID, d.IV, d.FV, est)
		if err != nil {
			return fmt.Errorf("insert defect %d: %w", d.TicketID, err)
		}
	}

	return nil
}

// Rows reads back the rows of a run in (release, path) order.
func (s *Store) Rows(ctx context.Context, runID string) ([]dataset.Row, error) {
	rs, err := s.db.QueryContext(ctx, `SELECT release_index, path, loc_touched, revisions, fix_count, loc_added,
    max_loc_added, change_set_size, max_change_set, avg_change_set, avg_loc_added, buggy
FROM dataset_rows WHERE run_id = ? ORDER BY release_index, path`, runID)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rs.Close()

	var out []dataset.Row

	for rs.Next() {
		var row dataset.Row

		m := &row.Metrics

		err = rs.Scan(&row.Release, &row.Path,
			&m[dataset.LOCTouched], &m[dataset.Revisions], &m[dataset.FixCount],
			&m[dataset.LOCAdded], &m[dataset.MaxLOCAdded],
			&m[dataset.ChangeSetSize], &m[dataset.MaxChangeSet],
			&m[dataset.AvgChangeSet], &m[dataset.AvgLOCAdded], &m[dataset.Buggy],
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		out = append(out, row)
	}

	err = rs.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return out, nil
}

// Runs lists the stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rs, err := s.db.QueryContext(ctx,
		"SELECT id, project, upper_bound, created_at FROM runs ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rs.Close()

	var out []Run

	for rs.Next() {
		var (
			r       Run
			created string
		)

		err = rs.Scan(&r.ID, &r.Project, &r.UpperBound, &created)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		r.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("run %s created_at: %w", r.ID, err)
		}

		out = append(out, r)
	}

	err = rs.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return out, nil
}

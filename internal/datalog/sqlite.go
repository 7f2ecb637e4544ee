package datalog

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQLiteSink mirrors the CSV report into a local SQLite database.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (or creates) the database and ensures the schema.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening datalog database %s", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "pinging datalog database %s", path)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "setting datalog pragmas")
	}

	if _, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS processing_log (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            process_start TEXT NOT NULL,
            data_folder TEXT NOT NULL,
            data_file TEXT,
            scc_system_id TEXT,
            measurement_id TEXT,
            uploaded INTEGER NOT NULL DEFAULT 0,
            downloaded INTEGER NOT NULL DEFAULT 0,
            scc_version TEXT,
            result TEXT
        );
        CREATE INDEX IF NOT EXISTS idx_processing_log_measurement
            ON processing_log (measurement_id);
    `); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating datalog schema")
	}

	return &SQLiteSink{db: db}, nil
}

// Append implements Sink.
func (s *SQLiteSink) Append(rows []Row) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "starting datalog transaction")
	}

	stmt, err := tx.Prepare(`
        INSERT INTO processing_log
            (process_start, data_folder, data_file, scc_system_id,
             measurement_id, uploaded, downloaded, scc_version, result)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "preparing datalog insert")
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.Exec(
			row.ProcessStart, row.DataFolder, row.DataFile, row.SystemID,
			row.MeasurementID, row.Uploaded, row.Downloaded, row.SCCVersion, row.Result,
		); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "inserting datalog row for %s", row.MeasurementID)
		}
	}

	return errors.Wrap(tx.Commit(), "committing datalog rows")
}

// Close releases the database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

var _ Sink = (*SQLiteSink)(nil)

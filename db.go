package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// archiveConfigured reports whether any DSN source is set, so exports can
// skip the archive entirely instead of failing on a missing DSN.
func archiveConfigured(dsn string) bool {
	return strings.TrimSpace(dsn) != "" ||
		strings.TrimSpace(os.Getenv("GRADING_DB_DSN")) != "" ||
		strings.TrimSpace(os.Getenv("DATABASE_URL")) != ""
}

// archiveSnapshot persists a grading snapshot to Postgres: one summary row
// plus one row per trainee as graded at export time. Called only after a
// report generation succeeds, and only when a DSN is configured.
func archiveSnapshot(roster []Trainee, stats rosterStats, filename, dsn string) error {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("GRADING_DB_DSN"))
	}
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		return errors.New("GRADING_DB_DSN, DATABASE_URL, or -db-url is required for the snapshot archive")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return err
	}

	if err := ensureSchema(ctx, db); err != nil {
		return err
	}

	return insertSnapshot(ctx, db, stats, roster, filename)
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE SCHEMA IF NOT EXISTS immersion_grading_console;`,
		`CREATE TABLE IF NOT EXISTS immersion_grading_console.grading_snapshots (
			id BIGSERIAL PRIMARY KEY,
			generated_at TIMESTAMPTZ NOT NULL,
			report_filename TEXT NOT NULL,
			record_count INT NOT NULL,
			technical_count INT NOT NULL,
			production_count INT NOT NULL,
			support_count INT NOT NULL,
			graded_count INT NOT NULL,
			average_overall NUMERIC(5,1) NOT NULL,
			top_name TEXT NOT NULL,
			top_score TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS immersion_grading_console.grading_rows (
			id BIGSERIAL PRIMARY KEY,
			snapshot_id BIGINT NOT NULL REFERENCES immersion_grading_console.grading_snapshots(id) ON DELETE CASCADE,
			last_name TEXT NOT NULL,
			first_name TEXT NOT NULL,
			middle_name TEXT NOT NULL,
			strand TEXT NOT NULL,
			department TEXT NOT NULL,
			bucket TEXT NOT NULL,
			school TEXT NOT NULL,
			batch TEXT NOT NULL,
			date_of_immersion TEXT NOT NULL,
			status TEXT NOT NULL,
			over_all NUMERIC(5,1),
			grades JSONB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS grading_rows_snapshot_idx ON immersion_grading_console.grading_rows(snapshot_id);`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func insertSnapshot(ctx context.Context, db *sql.DB, stats rosterStats, roster []Trainee, filename string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var snapshotID int64
	row := tx.QueryRowContext(ctx, `
		INSERT INTO immersion_grading_console.grading_snapshots (
			generated_at,
			report_filename,
			record_count,
			technical_count,
			production_count,
			support_count,
			graded_count,
			average_overall,
			top_name,
			top_score
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id;
	`,
		stats.GeneratedAt,
		filename,
		stats.RecordCount,
		stats.Technical,
		stats.Production,
		stats.Support,
		stats.Graded,
		stats.AverageOverall,
		stats.TopName,
		stats.TopScore,
	)
	if err = row.Scan(&snapshotID); err != nil {
		_ = tx.Rollback()
		return err
	}

	insertStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO immersion_grading_console.grading_rows (
			snapshot_id,
			last_name,
			first_name,
			middle_name,
			strand,
			department,
			bucket,
			school,
			batch,
			date_of_immersion,
			status,
			over_all,
			grades
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13);
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer insertStmt.Close()

	for i := range roster {
		t := roster[i]
		grades, marshalErr := json.Marshal(t.Grades)
		if marshalErr != nil {
			err = marshalErr
			_ = tx.Rollback()
			return err
		}
		_, err = insertStmt.ExecContext(
			ctx,
			snapshotID,
			t.LastName,
			t.FirstName,
			t.MiddleName,
			t.Strand,
			t.Department,
			string(classifyDepartment(t.Department)),
			t.School,
			t.Batch,
			t.DateOfImmersion,
			t.Status,
			nullScore(t.OverAll),
			grades,
		)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func nullScore(raw string) sql.NullString {
	if strings.TrimSpace(raw) == "" || raw == "." {
		return sql.NullString{}
	}
	return sql.NullString{String: raw, Valid: true}
}

package infra

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type recordingConn struct {
	lastSQL string
	lastArg []any
}

func (c *recordingConn) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.lastSQL = sql
	c.lastArg = args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (c *recordingConn) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	c.lastSQL = sql
	c.lastArg = args
	return errorRow{err: pgx.ErrNoRows}
}

func TestSQLRunnerStripsMarker(t *testing.T) {
	conn := &recordingConn{}
	runner := NewSQLRunner(conn, nil)
	query := "--sql 0f3c2a1e-6f0b-4a53-9b4d-2f1a7a1c9e10\nSELECT 1"
	if _, err := runner.Exec(context.Background(), query, "a"); err != nil {
		t.Fatalf("Exec returned error: %v", err)
	}
	if conn.lastSQL != "SELECT 1" {
		t.Fatalf("statement not stripped: %q", conn.lastSQL)
	}
	if len(conn.lastArg) != 1 || conn.lastArg[0] != "a" {
		t.Fatalf("args not forwarded: %#v", conn.lastArg)
	}
}

func TestSQLRunnerRejectsUnmarkedQuery(t *testing.T) {
	conn := &recordingConn{}
	runner := NewSQLRunner(conn, nil)
	if _, err := runner.Exec(context.Background(), "SELECT 1"); !errors.Is(err, ErrMissingMarker) {
		t.Fatalf("expected ErrMissingMarker, got %v", err)
	}
	var out int
	if err := runner.QueryRow(context.Background(), "--sql nope\nSELECT 1").Scan(&out); !errors.Is(err, ErrMissingMarker) {
		t.Fatalf("expected ErrMissingMarker from QueryRow, got %v", err)
	}
	if conn.lastSQL != "" {
		t.Fatalf("unmarked query reached the database: %q", conn.lastSQL)
	}
}

func TestSQLRunnerPassesNoRowsThrough(t *testing.T) {
	runner := NewSQLRunner(&recordingConn{}, nil)
	var out int
	err := runner.QueryRow(context.Background(), "--sql 0f3c2a1e-6f0b-4a53-9b4d-2f1a7a1c9e10\nSELECT 1").Scan(&out)
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows, got %v", err)
	}
}

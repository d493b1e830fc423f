package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGo(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPersonaQueriesAreMarked(t *testing.T) {
	var stderr bytes.Buffer
	if code := run([]string{"../../sqlinline"}, &stderr); code != 0 {
		t.Fatalf("sqllint failed:\n%s", stderr.String())
	}
}

func TestReportsMissingMarker(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "q.go", "package q\n\nconst QBad = `select 1`\n")
	var stderr bytes.Buffer
	if code := run([]string{dir}, &stderr); code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "QBad") {
		t.Fatalf("violation not reported: %s", stderr.String())
	}
}

func TestReportsDuplicateMarker(t *testing.T) {
	dir := t.TempDir()
	marker := "--sql 3b8f6c2e-9a41-4d7e-b0c5-71e2d4a6f913"
	writeGo(t, dir, "a.go", "package q\n\nconst QA = `"+marker+"\nselect 1`\n")
	writeGo(t, dir, "b.go", "package q\n\nconst QB = `"+marker+"\nselect 2`\n")
	var stderr bytes.Buffer
	if code := run([]string{dir}, &stderr); code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "already used") {
		t.Fatalf("duplicate not reported: %s", stderr.String())
	}
}

func TestIgnoresNonSQLStrings(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "c.go", "package q\n\nconst Greeting = \"hello there\"\n")
	var stderr bytes.Buffer
	if code := run([]string{dir}, &stderr); code != 0 {
		t.Fatalf("exit code = %d: %s", code, stderr.String())
	}
}

package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"taskflow/internal/app"
)

func TestParseDue(t *testing.T) {
	got, err := parseDue("2024-06-01")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	if want := time.Date(2024, 6, 1, 23, 59, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	got, err = parseDue("2024-06-01T09:30:00+02:00")
	if err != nil {
		t.Fatalf("parse rfc3339: %v", err)
	}
	if got.Location() != time.UTC || got.Hour() != 7 {
		t.Fatalf("expected UTC 07:30, got %v", got)
	}
	if _, err := parseDue("tomorrow"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSetEnvValueReplacesKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("OTHER=1\nTASKFLOW_JWT_SECRET=old\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := setEnvValue(path, "TASKFLOW_JWT_SECRET", "new"); err != nil {
		t.Fatalf("set: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "OTHER=1\nTASKFLOW_JWT_SECRET=new\n" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestConfirm(t *testing.T) {
	ok, err := confirm(strings.NewReader("Y\n"), "")
	if err != nil || !ok {
		t.Fatalf("expected yes, got %v %v", ok, err)
	}
	ok, err = confirm(strings.NewReader(""), "")
	if err != nil || ok {
		t.Fatalf("expected no, got %v %v", ok, err)
	}
}

func TestDeleteTaskDeclinedKeepsTask(t *testing.T) {
	ctx := context.Background()
	ws, err := app.Open(ctx, app.OpenOptions{Dir: t.TempDir(), Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatalf("open workspace: %v", err)
	}
	defer ws.Close()

	var out bytes.Buffer
	if err := deleteTask(ctx, ws, "t1", false, strings.NewReader("n\n"), &out); err != nil {
		t.Fatalf("declined delete returned error: %v", err)
	}
	if !strings.Contains(out.String(), "cancelled") {
		t.Fatalf("expected cancelled, got %q", out.String())
	}
	if _, err := ws.Session.Task("t1"); err != nil {
		t.Fatalf("task should survive a declined delete: %v", err)
	}

	out.Reset()
	if err := deleteTask(ctx, ws, "t1", false, strings.NewReader("y\n"), &out); err != nil {
		t.Fatalf("confirmed delete: %v", err)
	}
	if _, err := ws.Session.Task("t1"); err == nil {
		t.Fatalf("task should be gone")
	}
}

package app_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/app"
	"taskflow/internal/attach"
	"taskflow/internal/config"
	"taskflow/internal/domain"
	"taskflow/internal/engine"
	"taskflow/internal/query"
	"taskflow/internal/seed"
	"taskflow/internal/store"
)

var now = time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

func newSession(t *testing.T, kv store.KV, eng engine.Engine) *app.Session {
	t.Helper()
	eng.Now = func() time.Time { return now }
	s, err := app.NewSession(context.Background(), app.SessionOptions{
		KV:        kv,
		Engine:    eng,
		Users:     seed.Users(),
		SeedTasks: seed.Tasks(now),
		Logger:    log.New(&bytes.Buffer{}, "", 0),
	})
	require.NoError(t, err)
	return s
}

func TestSessionStartsFromSeed(t *testing.T) {
	s := newSession(t, &store.MemoryKV{}, engine.New())
	assert.Len(t, s.Tasks(), 6)
	assert.Equal(t, "u1", s.CurrentUser().ID)
}

func TestMutationsPersistAndReload(t *testing.T) {
	ctx := context.Background()
	kv := &store.MemoryKV{}
	s := newSession(t, kv, engine.New())

	out, err := s.ChangeStatus(ctx, "t6", domain.StatusCompleted, "u1")
	require.NoError(t, err)
	require.NotNil(t, out.Spawned)

	_, err = s.SwitchUser(ctx, "u2")
	require.NoError(t, err)

	reloaded := newSession(t, kv, engine.New())
	assert.Equal(t, s.Tasks(), reloaded.Tasks())
	assert.Len(t, reloaded.Tasks(), 7)
	assert.Equal(t, "u2", reloaded.CurrentUser().ID)
}

func TestNoOpIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	kv := &store.MemoryKV{}
	s := newSession(t, kv, engine.New())
	_, err := s.AddComment(ctx, "t1", "   ", "u1")
	require.NoError(t, err)
	_, err = kv.GetValue(ctx, store.KeyTasks)
	assert.Error(t, err, "nothing should have been written")
}

func TestFailedSaveLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	kv := &store.MemoryKV{FailWrites: true}
	s := newSession(t, kv, engine.New())
	_, err := s.ChangePriority(ctx, "t1", domain.PriorityLow, "u1")
	require.Error(t, err)
	task, err := s.Task("t1")
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityHigh, task.Priority)

	_, err = s.SwitchUser(ctx, "u3")
	require.Error(t, err)
	assert.Equal(t, "u1", s.CurrentUser().ID)
}

func TestUnknownTaskAndUser(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, &store.MemoryKV{}, engine.New())
	_, err := s.ChangeStatus(ctx, "nope", domain.StatusCompleted, "u1")
	assert.ErrorIs(t, err, app.ErrTaskNotFound)
	_, err = s.SwitchUser(ctx, "u9")
	assert.ErrorIs(t, err, app.ErrUserNotFound)
	_, err = s.CreateTask(ctx, engine.TaskCreateOptions{Title: "x", DueDate: now, AssigneeIDs: []string{"u9"}})
	assert.ErrorIs(t, err, engine.ErrInvalidInput)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, &store.MemoryKV{}, engine.New())

	removed, err := s.DeleteTask(ctx, "t3", false)
	assert.ErrorIs(t, err, app.ErrConfirmationRequired)
	assert.False(t, removed)
	assert.Len(t, s.Tasks(), 6)

	removed, err = s.DeleteTask(ctx, "t3", true)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.DeleteTask(ctx, "t3", true)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Len(t, s.Tasks(), 5)
}

func TestVisibleUsesActorScope(t *testing.T) {
	s := newSession(t, &store.MemoryKV{}, engine.New())
	brenda, err := s.User("u2")
	require.NoError(t, err)
	got := s.Visible(brenda, query.TaskFilters{})
	require.Len(t, got, 2)
	assert.Equal(t, "t5", got[0].ID)
}

// gatedEncoder blocks until released so a test can observe the in-flight state.
type gatedEncoder struct {
	started chan struct{}
	release chan struct{}
}

func (g gatedEncoder) Encode(ctx context.Context, u attach.Upload) (attach.Encoded, error) {
	close(g.started)
	select {
	case <-g.release:
	case <-ctx.Done():
		return attach.Encoded{}, ctx.Err()
	}
	return attach.DataURLEncoder{}.Encode(ctx, u)
}

func TestUploadMarksOnlyItsTaskBusy(t *testing.T) {
	ctx := context.Background()
	gate := gatedEncoder{started: make(chan struct{}), release: make(chan struct{})}
	eng := engine.New()
	eng.Uploads = gate
	s := newSession(t, &store.MemoryKV{}, eng)

	type result struct {
		out engine.Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := s.AddAttachments(ctx, "t1", []attach.Upload{
			{Name: "notes.txt", ContentType: "text/plain", Content: strings.NewReader("hi")},
		}, "u3")
		done <- result{out, err}
	}()
	<-gate.started

	_, err := s.ChangeStatus(ctx, "t1", domain.StatusCompleted, "u1")
	assert.ErrorIs(t, err, app.ErrTaskBusy)
	_, err = s.DeleteTask(ctx, "t1", true)
	assert.ErrorIs(t, err, app.ErrTaskBusy)
	_, err = s.ChangeStatus(ctx, "t2", domain.StatusInProgress, "u2")
	assert.NoError(t, err, "other tasks stay mutable")

	close(gate.release)
	res := <-done
	require.NoError(t, res.err)
	task, err := s.Task("t1")
	require.NoError(t, err)
	require.Len(t, task.Attachments, 1)
	assert.Equal(t, "Added 1 attachment(s)", task.AuditLog[len(task.AuditLog)-1].Action)

	_, err = s.ChangeStatus(ctx, "t1", domain.StatusCompleted, "u1")
	assert.NoError(t, err, "busy flag cleared after upload")
}

func TestAuditIsACopy(t *testing.T) {
	s := newSession(t, &store.MemoryKV{}, engine.New())
	entries, err := s.Audit("t1")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	entries[0].Action = "tampered"

	task, err := s.Task("t1")
	require.NoError(t, err)
	task.AuditLog[0].Action = "tampered too"

	again, err := s.Audit("t1")
	require.NoError(t, err)
	assert.Equal(t, "Task created", again[0].Action)
}

func TestCancelledUploadDiscarded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newSession(t, &store.MemoryKV{}, engine.New())
	_, err := s.AddAttachments(ctx, "t1", []attach.Upload{{Name: "a", Content: strings.NewReader("x")}}, "u1")
	assert.True(t, errors.Is(err, context.Canceled))
	task, _ := s.Task("t1")
	assert.Empty(t, task.Attachments)
	_, err = s.AddComment(context.Background(), "t1", "still works", "u1")
	assert.NoError(t, err)
}

func TestOpenWorkspace(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Recurrence.MonthEnd = "roll"
	ws, err := app.Open(ctx, app.OpenOptions{Dir: dir, Config: cfg, Now: func() time.Time { return now }})
	require.NoError(t, err)
	_, err = ws.Session.ChangeStatus(ctx, "t2", domain.StatusInProgress, "u1")
	require.NoError(t, err)
	require.NoError(t, ws.Close())

	ws, err = app.Open(ctx, app.OpenOptions{Dir: dir, Now: func() time.Time { return now }})
	require.NoError(t, err)
	defer ws.Close()
	task, err := ws.Session.Task("t2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, task.Status)
}

package taskflowsdk_test

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/app"
	"taskflow/internal/server"
	taskflowsdk "taskflow/sdk/go"
)

var now = time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

func newClient(t *testing.T) *taskflowsdk.Client {
	t.Helper()
	clock := func() time.Time { return now }
	logger := log.New(io.Discard, "", 0)
	ws, err := app.Open(context.Background(), app.OpenOptions{Dir: t.TempDir(), Now: clock, Logger: logger})
	require.NoError(t, err)
	handler, err := server.New(server.Config{
		Session: ws.Session,
		Auth:    server.AuthConfig{AllowUserHeader: true, Logger: logger},
		Now:     clock,
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		ws.Close()
	})
	c := taskflowsdk.New(srv.URL)
	c.HTTPClient = srv.Client()
	return c
}

func TestClientTaskLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	users, err := c.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 4)

	created, err := c.CreateTask(ctx, taskflowsdk.NewTask{
		Title:              "Water the plants",
		DueDate:            now.Add(24 * time.Hour),
		AssigneeIDs:        []string{"u3"},
		IsRecurring:        true,
		RecurrenceInterval: "daily",
	})
	require.NoError(t, err)
	assert.Equal(t, "To Do", created.Status)

	c.UserID = "u3"
	list, err := c.ListTasks(ctx, taskflowsdk.TaskFilters{Search: "plants"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	_, err = c.AddComment(ctx, created.ID, "will do")
	require.NoError(t, err)
	_, err = c.AddAttachments(ctx, created.ID, []taskflowsdk.File{{Name: "a.txt", ContentType: "text/plain", Content: []byte("x")}})
	require.NoError(t, err)

	m, err := c.SetStatus(ctx, created.ID, "Completed")
	require.NoError(t, err)
	require.NotNil(t, m.Spawned)
	assert.True(t, m.Spawned.DueDate.Equal(now.Add(48*time.Hour)))

	audit, err := c.Audit(ctx, created.ID)
	require.NoError(t, err)
	actions := make([]string, 0, len(audit))
	for _, a := range audit {
		actions = append(actions, a.Action)
	}
	assert.Equal(t, []string{"Task created", "Added a comment", "Added 1 attachment(s)", "Status changed to Completed"}, actions)

	_, err = c.Dashboard(ctx)
	var apiErr *taskflowsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "forbidden", apiErr.Code)

	c.UserID = "u1"
	deleted, err := c.DeleteTask(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = c.GetTask(ctx, created.ID)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

package taskflowsdk

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Taskflow HTTP API client.
type Client struct {
	BaseURL  string
	BasePath string
	// UserID is sent as X-User-Id when no bearer token is set.
	UserID      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	AvatarURL string `json:"avatar_url"`
}

type Comment struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

type AuditEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ActorName string    `json:"actor_name"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// Task represents the API task model.
type Task struct {
	ID                 string       `json:"id"`
	Title              string       `json:"title"`
	Description        string       `json:"description"`
	Status             string       `json:"status"`
	Priority           string       `json:"priority"`
	DueDate            time.Time    `json:"due_date"`
	Overdue            bool         `json:"overdue"`
	AssigneeIDs        []string     `json:"assignee_ids"`
	Comments           []Comment    `json:"comments"`
	Attachments        []Attachment `json:"attachments"`
	AuditLog           []AuditEntry `json:"audit_log"`
	IsRecurring        bool         `json:"is_recurring"`
	RecurrenceInterval string       `json:"recurrence_interval,omitempty"`
}

// Mutation is returned by every task intent. Spawned is set when completing
// a recurring task created its next occurrence.
type Mutation struct {
	Task    Task  `json:"task"`
	Spawned *Task `json:"spawned,omitempty"`
	Changed bool  `json:"changed"`
}

type NewTask struct {
	Title              string    `json:"title"`
	Description        string    `json:"description,omitempty"`
	Status             string    `json:"status,omitempty"`
	Priority           string    `json:"priority,omitempty"`
	DueDate            time.Time `json:"due_date"`
	AssigneeIDs        []string  `json:"assignee_ids,omitempty"`
	IsRecurring        bool      `json:"is_recurring,omitempty"`
	RecurrenceInterval string    `json:"recurrence_interval,omitempty"`
}

// TaskFilters narrows ListTasks. Empty fields and "ALL" match everything.
type TaskFilters struct {
	Search     string
	Status     string
	Priority   string
	AssigneeID string
}

// File is an attachment to upload.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type MemberStats struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Overdue   int    `json:"overdue"`
	Completed int    `json:"completed"`
}

type Dashboard struct {
	GeneratedAt    time.Time     `json:"generated_at"`
	Total          int           `json:"total"`
	Completed      int           `json:"completed"`
	Overdue        int           `json:"overdue"`
	CompletionRate int           `json:"completion_rate"`
	ByStatus       []StatusCount `json:"by_status"`
	Members        []MemberStats `json:"members"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s body=%s", e.StatusCode, e.Code, e.Body)
}

func (c *Client) Users(ctx context.Context) ([]User, error) {
	var resp []User
	err := c.do(ctx, http.MethodGet, "users", nil, &resp)
	return resp, err
}

// SwitchUser changes the server session's current user.
func (c *Client) SwitchUser(ctx context.Context, userID string) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodPut, "session/current-user", map[string]any{"user_id": userID}, &resp)
	return resp, err
}

// ListTasks returns the tasks visible to the acting user, soonest due first.
func (c *Client) ListTasks(ctx context.Context, f TaskFilters) ([]Task, error) {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Priority != "" {
		q.Set("priority", f.Priority)
	}
	if f.AssigneeID != "" {
		q.Set("assignee_id", f.AssigneeID)
	}
	endpoint := "tasks"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, taskPath(id, ""), nil, &resp)
	return resp, err
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, t NewTask) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", t, &resp)
	return resp, err
}

// UpdateTask sends a partial edit; only keys present in fields are changed.
func (c *Client) UpdateTask(ctx context.Context, id string, fields map[string]any) (Mutation, error) {
	var resp Mutation
	err := c.do(ctx, http.MethodPatch, taskPath(id, ""), fields, &resp)
	return resp, err
}

func (c *Client) SetStatus(ctx context.Context, id, status string) (Mutation, error) {
	var resp Mutation
	err := c.do(ctx, http.MethodPut, taskPath(id, "status"), map[string]any{"status": status}, &resp)
	return resp, err
}

func (c *Client) SetPriority(ctx context.Context, id, priority string) (Mutation, error) {
	var resp Mutation
	err := c.do(ctx, http.MethodPut, taskPath(id, "priority"), map[string]any{"priority": priority}, &resp)
	return resp, err
}

func (c *Client) AddComment(ctx context.Context, id, content string) (Mutation, error) {
	var resp Mutation
	err := c.do(ctx, http.MethodPost, taskPath(id, "comments"), map[string]any{"content": content}, &resp)
	return resp, err
}

// AddAttachments uploads files as base64 in a single request.
func (c *Client) AddAttachments(ctx context.Context, id string, files []File) (Mutation, error) {
	items := make([]map[string]any, 0, len(files))
	for _, f := range files {
		items = append(items, map[string]any{
			"name":           f.Name,
			"content_type":   f.ContentType,
			"content_base64": base64.StdEncoding.EncodeToString(f.Content),
		})
	}
	var resp Mutation
	err := c.do(ctx, http.MethodPost, taskPath(id, "attachments"), map[string]any{"files": items}, &resp)
	return resp, err
}

// DeleteTask removes a task. It reports false when the id was already gone.
func (c *Client) DeleteTask(ctx context.Context, id string) (bool, error) {
	var resp struct {
		Deleted bool `json:"deleted"`
	}
	err := c.do(ctx, http.MethodDelete, taskPath(id, "")+"?confirm=true", nil, &resp)
	return resp.Deleted, err
}

func (c *Client) Audit(ctx context.Context, id string) ([]AuditEntry, error) {
	var resp []AuditEntry
	err := c.do(ctx, http.MethodGet, taskPath(id, "audit"), nil, &resp)
	return resp, err
}

// Dashboard returns team metrics. Managers only.
func (c *Client) Dashboard(ctx context.Context) (Dashboard, error) {
	var resp Dashboard
	err := c.do(ctx, http.MethodGet, "dashboard", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.UserID != "":
		req.Header.Set("X-User-Id", c.UserID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func taskPath(id, sub string) string {
	p := "tasks/" + url.PathEscape(id)
	if sub != "" {
		p += "/" + sub
	}
	return p
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if c.BasePath != "" {
		base += "/" + strings.Trim(c.BasePath, "/")
	}
	return base
}

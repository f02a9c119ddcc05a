package server

import (
	"time"

	"taskflow/internal/domain"
	"taskflow/internal/engine"
	"taskflow/internal/report"
)

// Request payloads

type CreateTaskRequest struct {
	Title              string    `json:"title"`
	Description        *string   `json:"description,omitempty"`
	Status             *string   `json:"status,omitempty" enum:"To Do,In Progress,Completed"`
	Priority           *string   `json:"priority,omitempty" enum:"Low,Medium,High"`
	DueDate            time.Time `json:"due_date"`
	AssigneeIDs        []string  `json:"assignee_ids,omitempty"`
	IsRecurring        bool      `json:"is_recurring,omitempty"`
	RecurrenceInterval *string   `json:"recurrence_interval,omitempty" enum:"daily,weekly,monthly"`
}

type UpdateTaskRequest struct {
	Title              *string    `json:"title,omitempty"`
	Description        *string    `json:"description,omitempty"`
	Status             *string    `json:"status,omitempty" enum:"To Do,In Progress,Completed"`
	Priority           *string    `json:"priority,omitempty" enum:"Low,Medium,High"`
	DueDate            *time.Time `json:"due_date,omitempty"`
	AssigneeIDs        *[]string  `json:"assignee_ids,omitempty"`
	IsRecurring        *bool      `json:"is_recurring,omitempty"`
	RecurrenceInterval *string    `json:"recurrence_interval,omitempty" enum:"daily,weekly,monthly"`
}

type SetStatusRequest struct {
	Status string `json:"status" enum:"To Do,In Progress,Completed"`
}

type SetPriorityRequest struct {
	Priority string `json:"priority" enum:"Low,Medium,High"`
}

type AddCommentRequest struct {
	Content string `json:"content"`
}

type AttachmentUpload struct {
	Name          string `json:"name"`
	ContentType   string `json:"content_type,omitempty"`
	ContentBase64 string `json:"content_base64"`
}

type AddAttachmentsRequest struct {
	Files []AttachmentUpload `json:"files"`
}

type SwitchUserRequest struct {
	UserID string `json:"user_id"`
}

// Responses

type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	AvatarURL string `json:"avatar_url"`
}

type MeResponse struct {
	User   UserResponse `json:"user"`
	Source string       `json:"source"`
}

type CommentResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

type AttachmentResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

type AuditEntryResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ActorName string    `json:"actor_name"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

type TaskResponse struct {
	ID                 string               `json:"id"`
	Title              string               `json:"title"`
	Description        string               `json:"description"`
	Status             string               `json:"status"`
	Priority           string               `json:"priority"`
	DueDate            time.Time            `json:"due_date"`
	Overdue            bool                 `json:"overdue"`
	AssigneeIDs        []string             `json:"assignee_ids"`
	Comments           []CommentResponse    `json:"comments"`
	Attachments        []AttachmentResponse `json:"attachments"`
	AuditLog           []AuditEntryResponse `json:"audit_log"`
	IsRecurring        bool                 `json:"is_recurring"`
	RecurrenceInterval string               `json:"recurrence_interval,omitempty"`
}

type MutationResponse struct {
	Task    TaskResponse  `json:"task"`
	Spawned *TaskResponse `json:"spawned,omitempty"`
	Changed bool          `json:"changed"`
}

type DeleteTaskResponse struct {
	Deleted bool `json:"deleted"`
}

type CalendarTaskResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Overdue  bool   `json:"overdue"`
}

type CalendarDayResponse struct {
	Date         string                 `json:"date"`
	InMonth      bool                   `json:"in_month"`
	IsToday      bool                   `json:"is_today"`
	OverdueCount int                    `json:"overdue_count"`
	Tasks        []CalendarTaskResponse `json:"tasks"`
}

type CalendarResponse struct {
	Month string                  `json:"month"`
	Weeks [][]CalendarDayResponse `json:"weeks"`
}

// Mappers

func userResponse(u domain.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Role: string(u.Role), AvatarURL: u.AvatarURL}
}

func mapUsers(items []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(items))
	for _, u := range items {
		out = append(out, userResponse(u))
	}
	return out
}

func auditResponse(entries []domain.AuditLogEntry, users []domain.User) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, a := range entries {
		out = append(out, AuditEntryResponse{
			ID:        a.ID,
			UserID:    a.UserID,
			ActorName: domain.DisplayName(users, a.UserID),
			Action:    a.Action,
			Timestamp: a.Timestamp,
		})
	}
	return out
}

func taskResponse(t domain.Task, users []domain.User, now time.Time) TaskResponse {
	res := TaskResponse{
		ID:                 t.ID,
		Title:              t.Title,
		Description:        t.Description,
		Status:             string(t.Status),
		Priority:           string(t.Priority),
		DueDate:            t.DueDate,
		Overdue:            t.IsOverdue(now),
		AssigneeIDs:        nonNilSlice(t.AssigneeIDs),
		Comments:           make([]CommentResponse, 0, len(t.Comments)),
		Attachments:        make([]AttachmentResponse, 0, len(t.Attachments)),
		AuditLog:           auditResponse(t.AuditLog, users),
		IsRecurring:        t.IsRecurring,
		RecurrenceInterval: string(t.RecurrenceInterval),
	}
	for _, c := range t.Comments {
		res.Comments = append(res.Comments, CommentResponse{
			ID:         c.ID,
			UserID:     c.UserID,
			AuthorName: domain.DisplayName(users, c.UserID),
			Content:    c.Content,
			Timestamp:  c.Timestamp,
		})
	}
	for _, a := range t.Attachments {
		res.Attachments = append(res.Attachments, AttachmentResponse{ID: a.ID, Name: a.Name, Type: a.Type, URL: a.URL})
	}
	return res
}

func mapTasks(items []domain.Task, users []domain.User, now time.Time) []TaskResponse {
	out := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, taskResponse(t, users, now))
	}
	return out
}

func mutationResponse(out engine.Outcome, users []domain.User, now time.Time) MutationResponse {
	res := MutationResponse{Task: taskResponse(out.Task, users, now), Changed: out.Changed}
	if out.Spawned != nil {
		spawned := taskResponse(*out.Spawned, users, now)
		res.Spawned = &spawned
	}
	return res
}

func calendarResponse(cal report.Calendar, now time.Time) CalendarResponse {
	res := CalendarResponse{
		Month: time.Date(cal.Year, cal.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01"),
		Weeks: make([][]CalendarDayResponse, 0, len(cal.Weeks)),
	}
	for _, week := range cal.Weeks {
		days := make([]CalendarDayResponse, 0, len(week))
		for _, d := range week {
			day := CalendarDayResponse{
				Date:         d.Date,
				InMonth:      d.InMonth,
				IsToday:      d.IsToday,
				OverdueCount: d.OverdueCount,
				Tasks:        make([]CalendarTaskResponse, 0, len(d.Tasks)),
			}
			for _, t := range d.Tasks {
				day.Tasks = append(day.Tasks, CalendarTaskResponse{
					ID:       t.ID,
					Title:    t.Title,
					Status:   string(t.Status),
					Priority: string(t.Priority),
					Overdue:  t.IsOverdue(now),
				})
			}
			days = append(days, day)
		}
		res.Weeks = append(res.Weeks, days)
	}
	return res
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

package domain

import (
	"slices"
	"time"
)

type Role string

const (
	RoleManager Role = "Manager"
	RoleMember  Role = "Member"
)

type Status string

const (
	StatusTodo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

type RecurrenceInterval string

const (
	RecurDaily   RecurrenceInterval = "daily"
	RecurWeekly  RecurrenceInterval = "weekly"
	RecurMonthly RecurrenceInterval = "monthly"
)

// SystemUserID marks audit entries that no user authored.
const SystemUserID = "system"

// Statuses and Priorities list the enumerations in display order.
var (
	Statuses   = []Status{StatusTodo, StatusInProgress, StatusCompleted}
	Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}
	Intervals  = []RecurrenceInterval{RecurDaily, RecurWeekly, RecurMonthly}
)

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	AvatarURL string `json:"avatarUrl"`
}

type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

type AuditLogEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

type Task struct {
	ID                 string             `json:"id"`
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	Status             Status             `json:"status"`
	Priority           Priority           `json:"priority"`
	DueDate            time.Time          `json:"dueDate"`
	AssigneeIDs        []string           `json:"assigneeIds"`
	Comments           []Comment          `json:"comments"`
	Attachments        []Attachment       `json:"attachments"`
	AuditLog           []AuditLogEntry    `json:"auditLog"`
	IsRecurring        bool               `json:"isRecurring"`
	RecurrenceInterval RecurrenceInterval `json:"recurrenceInterval,omitempty"`
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if p == v {
			return true
		}
	}
	return false
}

func (r RecurrenceInterval) Valid() bool {
	for _, v := range Intervals {
		if r == v {
			return true
		}
	}
	return false
}

func (r Role) Valid() bool {
	return r == RoleManager || r == RoleMember
}

// HasAssignee reports whether userID is among the task's assignees.
func (t Task) HasAssignee(userID string) bool {
	return slices.Contains(t.AssigneeIDs, userID)
}

// IsOverdue is true when the due date has passed and the task is not completed.
func (t Task) IsOverdue(now time.Time) bool {
	return t.Status != StatusCompleted && t.DueDate.Before(now)
}

// Clone returns a copy whose nested slices do not alias the receiver's.
func (t Task) Clone() Task {
	c := t
	c.AssigneeIDs = slices.Clone(t.AssigneeIDs)
	c.Comments = slices.Clone(t.Comments)
	c.Attachments = slices.Clone(t.Attachments)
	c.AuditLog = slices.Clone(t.AuditLog)
	return c
}

func FindUser(users []User, id string) (User, bool) {
	for _, u := range users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

// DisplayName resolves a user id for rendering. Unknown ids, including the
// system sentinel and deleted users, render as "System".
func DisplayName(users []User, id string) string {
	if u, ok := FindUser(users, id); ok {
		return u.Name
	}
	return "System"
}

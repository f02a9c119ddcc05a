// Package seed holds the demo team and the task list a fresh workspace
// starts from.
package seed

import (
	"time"

	"taskflow/internal/domain"
)

const day = 24 * time.Hour

func Users() []domain.User {
	return []domain.User{
		{ID: "u1", Name: "Alex Manager", Role: domain.RoleManager, AvatarURL: "https://i.pravatar.cc/150?u=u1"},
		{ID: "u2", Name: "Brenda Developer", Role: domain.RoleMember, AvatarURL: "https://i.pravatar.cc/150?u=u2"},
		{ID: "u3", Name: "Charlie Designer", Role: domain.RoleMember, AvatarURL: "https://i.pravatar.cc/150?u=u3"},
		{ID: "u4", Name: "Diana QA", Role: domain.RoleMember, AvatarURL: "https://i.pravatar.cc/150?u=u4"},
	}
}

// Tasks returns the demo tasks with due dates relative to now.
func Tasks(now time.Time) []domain.Task {
	now = now.UTC()
	task := func(id, title, desc string, st domain.Status, p domain.Priority, due time.Duration, assignees ...string) domain.Task {
		return domain.Task{
			ID:          id,
			Title:       title,
			Description: desc,
			Status:      st,
			Priority:    p,
			DueDate:     now.Add(due),
			AssigneeIDs: assignees,
			Comments:    []domain.Comment{},
			Attachments: []domain.Attachment{},
			AuditLog:    []domain.AuditLogEntry{},
		}
	}
	audit := func(id, user, action string, at time.Time) []domain.AuditLogEntry {
		return []domain.AuditLogEntry{{ID: id, UserID: user, Action: action, Timestamp: at}}
	}

	t1 := task("t1", "Design new landing page",
		"Create a modern and responsive design for the new landing page. Focus on user engagement and conversion. Use the new brand guidelines.",
		domain.StatusInProgress, domain.PriorityHigh, 2*day, "u3")
	t1.Comments = []domain.Comment{{ID: "c1", UserID: "u1", Content: "Great start, Charlie! Let's review the wireframes tomorrow.", Timestamp: now}}
	t1.AuditLog = audit("a1", "u1", "Task created", now.Add(-day))

	t2 := task("t2", "Develop user authentication feature",
		"Implement JWT-based authentication for the main application. Include sign-up, login, and logout functionalities.",
		domain.StatusTodo, domain.PriorityHigh, 5*day, "u2")
	t2.AuditLog = audit("a2", "u1", "Task created", now)

	t3 := task("t3", "Test payment gateway integration",
		"Perform thorough testing of the Stripe payment gateway integration. Cover all edge cases and scenarios.",
		domain.StatusTodo, domain.PriorityMedium, 7*day, "u4")
	t3.AuditLog = audit("a3", "u1", "Task created", now)

	t4 := task("t4", "Update Q3 marketing report",
		"Finalize the Q3 marketing report with the latest campaign data and performance metrics.",
		domain.StatusCompleted, domain.PriorityLow, -day, "u1")
	t4.AuditLog = audit("a4", "u1", "Task completed", now)
	t4.IsRecurring = true
	t4.RecurrenceInterval = domain.RecurMonthly

	t5 := task("t5", "Fix responsive layout bug on mobile",
		"The main dashboard layout breaks on screen widths below 400px. Investigate and apply a fix.",
		domain.StatusInProgress, domain.PriorityMedium, day, "u2", "u3")
	t5.AuditLog = audit("a5", "u2", "Task started", now)

	t6 := task("t6", "Prepare weekly project sync slides",
		"Compile updates from all team members and prepare a presentation for the weekly sync meeting.",
		domain.StatusTodo, domain.PriorityLow, day/2, "u1")
	t6.AuditLog = audit("a6", "u1", "Task created", now)
	t6.IsRecurring = true
	t6.RecurrenceInterval = domain.RecurWeekly

	return []domain.Task{t1, t2, t3, t4, t5, t6}
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskflow/internal/attach"
	"taskflow/internal/domain"
	"taskflow/internal/events"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrTaskNotFound = errors.New("task not found")
)

// MonthEndPolicy decides where a monthly recurrence lands when the next month
// is shorter than the due date's day of month.
type MonthEndPolicy string

const (
	// MonthEndClamp moves Jan 31 to the last day of February.
	MonthEndClamp MonthEndPolicy = "clamp"
	// MonthEndRoll keeps calendar overflow, so Jan 31 becomes Mar 2 or 3.
	MonthEndRoll MonthEndPolicy = "roll"
)

func (p MonthEndPolicy) Valid() bool {
	return p == MonthEndClamp || p == MonthEndRoll
}

// ContentEncoder converts an upload into a stored content reference.
type ContentEncoder interface {
	Encode(ctx context.Context, u attach.Upload) (attach.Encoded, error)
}

// Engine computes task mutations. It holds no task state; every method takes
// the current value and returns the next one.
type Engine struct {
	Now      func() time.Time
	NewID    func() string
	Uploads  ContentEncoder
	MonthEnd MonthEndPolicy
}

func New() Engine {
	return Engine{
		Now:      time.Now,
		NewID:    uuid.NewString,
		Uploads:  attach.DataURLEncoder{},
		MonthEnd: MonthEndClamp,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e Engine) audit() events.Writer {
	return events.Writer{Now: e.now, NewID: e.newID}
}

// Outcome is the result of a single intent. Spawned is set only when a
// recurring task was completed.
type Outcome struct {
	Task    domain.Task
	Spawned *domain.Task
	Changed bool
}

func unchanged(t domain.Task) Outcome {
	return Outcome{Task: t}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	Title              string
	Description        string
	Status             domain.Status
	Priority           domain.Priority
	DueDate            time.Time
	AssigneeIDs        []string
	IsRecurring        bool
	RecurrenceInterval domain.RecurrenceInterval
	ActorID            string
}

func (e Engine) CreateTask(opts TaskCreateOptions) (domain.Task, error) {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return domain.Task{}, invalid("title is required")
	}
	if opts.DueDate.IsZero() {
		return domain.Task{}, invalid("due date is required")
	}
	if opts.Status == "" {
		opts.Status = domain.StatusTodo
	}
	if !opts.Status.Valid() {
		return domain.Task{}, invalid("unknown status %q", opts.Status)
	}
	if opts.Priority == "" {
		opts.Priority = domain.PriorityMedium
	}
	if !opts.Priority.Valid() {
		return domain.Task{}, invalid("unknown priority %q", opts.Priority)
	}
	if err := checkRecurrence(opts.IsRecurring, opts.RecurrenceInterval); err != nil {
		return domain.Task{}, err
	}
	assignees := []string{}
	for _, id := range opts.AssigneeIDs {
		if id != "" && !slices.Contains(assignees, id) {
			assignees = append(assignees, id)
		}
	}
	t := domain.Task{
		ID:                 e.newID(),
		Title:              title,
		Description:        opts.Description,
		Status:             opts.Status,
		Priority:           opts.Priority,
		DueDate:            opts.DueDate.UTC(),
		AssigneeIDs:        assignees,
		Comments:           []domain.Comment{},
		Attachments:        []domain.Attachment{},
		AuditLog:           []domain.AuditLogEntry{},
		IsRecurring:        opts.IsRecurring,
		RecurrenceInterval: opts.RecurrenceInterval,
	}
	e.audit().Append(&t, opts.ActorID, events.ActionCreated)
	return t, nil
}

func checkRecurrence(recurring bool, interval domain.RecurrenceInterval) error {
	if recurring && !interval.Valid() {
		return invalid("recurring task needs an interval (daily, weekly or monthly)")
	}
	if !recurring && interval != "" {
		return invalid("recurrence interval set on a non-recurring task")
	}
	return nil
}

// ChangeStatus moves a task to status. Completing a recurring task that was
// not already completed also yields the next occurrence.
func (e Engine) ChangeStatus(t domain.Task, status domain.Status, actorID string) (Outcome, error) {
	if !status.Valid() {
		return unchanged(t), invalid("unknown status %q", status)
	}
	if t.Status == status {
		return unchanged(t), nil
	}
	next := t.Clone()
	old := next.Status
	next.Status = status
	e.audit().Append(&next, actorID, events.StatusChanged(status))
	out := Outcome{Task: next, Changed: true}
	if old != domain.StatusCompleted && status == domain.StatusCompleted && next.IsRecurring {
		sibling, err := e.spawnRecurrence(next)
		if err != nil {
			return unchanged(t), err
		}
		out.Spawned = &sibling
	}
	return out, nil
}

func (e Engine) spawnRecurrence(t domain.Task) (domain.Task, error) {
	due, err := NextDueDate(t.DueDate, t.RecurrenceInterval, e.MonthEnd)
	if err != nil {
		return domain.Task{}, err
	}
	sibling := domain.Task{
		ID:                 e.newID(),
		Title:              t.Title,
		Description:        t.Description,
		Status:             domain.StatusTodo,
		Priority:           t.Priority,
		DueDate:            due,
		AssigneeIDs:        slices.Clone(t.AssigneeIDs),
		Comments:           []domain.Comment{},
		Attachments:        []domain.Attachment{},
		AuditLog:           []domain.AuditLogEntry{},
		IsRecurring:        t.IsRecurring,
		RecurrenceInterval: t.RecurrenceInterval,
	}
	if sibling.AssigneeIDs == nil {
		sibling.AssigneeIDs = []string{}
	}
	e.audit().Append(&sibling, domain.SystemUserID, events.RecurrenceSpawned(t.ID))
	return sibling, nil
}

// NextDueDate advances due by one recurrence interval.
func NextDueDate(due time.Time, interval domain.RecurrenceInterval, policy MonthEndPolicy) (time.Time, error) {
	switch interval {
	case domain.RecurDaily:
		return due.AddDate(0, 0, 1), nil
	case domain.RecurWeekly:
		return due.AddDate(0, 0, 7), nil
	case domain.RecurMonthly:
		if policy == MonthEndRoll {
			return due.AddDate(0, 1, 0), nil
		}
		y, m, d := due.Date()
		last := daysIn(y, m+1, due.Location())
		if d > last {
			d = last
		}
		return time.Date(y, m+1, d, due.Hour(), due.Minute(), due.Second(), due.Nanosecond(), due.Location()), nil
	}
	return time.Time{}, invalid("unknown recurrence interval %q", interval)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	// day 0 of the following month is the last day of month
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

func (e Engine) ChangePriority(t domain.Task, p domain.Priority, actorID string) (Outcome, error) {
	if !p.Valid() {
		return unchanged(t), invalid("unknown priority %q", p)
	}
	if t.Priority == p {
		return unchanged(t), nil
	}
	next := t.Clone()
	next.Priority = p
	e.audit().Append(&next, actorID, events.PriorityChanged(p))
	return Outcome{Task: next, Changed: true}, nil
}

// AddComment appends a comment. Blank content is ignored rather than rejected.
func (e Engine) AddComment(t domain.Task, content, actorID string) Outcome {
	content = strings.TrimSpace(content)
	if content == "" {
		return unchanged(t)
	}
	next := t.Clone()
	next.Comments = append(next.Comments, domain.Comment{
		ID:        e.newID(),
		UserID:    actorID,
		Content:   content,
		Timestamp: e.now(),
	})
	e.audit().Append(&next, actorID, events.ActionCommentAdded)
	return Outcome{Task: next, Changed: true}
}

// AddAttachments converts uploads in order and records them with a single
// audit entry. Any conversion failure leaves the task untouched.
func (e Engine) AddAttachments(ctx context.Context, t domain.Task, uploads []attach.Upload, actorID string) (Outcome, error) {
	if len(uploads) == 0 {
		return unchanged(t), nil
	}
	enc := e.Uploads
	if enc == nil {
		enc = attach.DataURLEncoder{}
	}
	added := make([]domain.Attachment, 0, len(uploads))
	for _, u := range uploads {
		encoded, err := enc.Encode(ctx, u)
		if err != nil {
			return unchanged(t), fmt.Errorf("attach %s: %w", u.Name, err)
		}
		added = append(added, domain.Attachment{
			ID:   e.newID(),
			Name: u.Name,
			Type: encoded.Type,
			URL:  encoded.URL,
		})
	}
	next := t.Clone()
	next.Attachments = append(next.Attachments, added...)
	e.audit().Append(&next, actorID, events.AttachmentsAdded(len(added)))
	return Outcome{Task: next, Changed: true}, nil
}

// TaskUpdateOptions encapsulates allowed edits. Nil fields are left alone.
type TaskUpdateOptions struct {
	Title              *string
	Description        *string
	DueDate            *time.Time
	AssigneeIDs        *[]string
	IsRecurring        *bool
	RecurrenceInterval *domain.RecurrenceInterval
	Priority           *domain.Priority
	Status             *domain.Status
	ActorID            string
}

// UpdateTask applies a field patch. Plain field edits are not audited; status
// and priority go through ChangeStatus and ChangePriority so they are.
func (e Engine) UpdateTask(t domain.Task, opts TaskUpdateOptions) (Outcome, error) {
	next := t.Clone()
	changed := false

	if opts.Title != nil {
		title := strings.TrimSpace(*opts.Title)
		if title == "" {
			return unchanged(t), invalid("title is required")
		}
		changed = changed || title != next.Title
		next.Title = title
	}
	if opts.Description != nil {
		changed = changed || *opts.Description != next.Description
		next.Description = *opts.Description
	}
	if opts.DueDate != nil {
		if opts.DueDate.IsZero() {
			return unchanged(t), invalid("due date is required")
		}
		due := opts.DueDate.UTC()
		changed = changed || !due.Equal(next.DueDate)
		next.DueDate = due
	}
	if opts.AssigneeIDs != nil {
		assignees := []string{}
		for _, id := range *opts.AssigneeIDs {
			if id != "" && !slices.Contains(assignees, id) {
				assignees = append(assignees, id)
			}
		}
		changed = changed || !slices.Equal(assignees, next.AssigneeIDs)
		next.AssigneeIDs = assignees
	}
	if opts.IsRecurring != nil || opts.RecurrenceInterval != nil {
		recurring := next.IsRecurring
		interval := next.RecurrenceInterval
		if opts.IsRecurring != nil {
			recurring = *opts.IsRecurring
		}
		if opts.RecurrenceInterval != nil {
			interval = *opts.RecurrenceInterval
		}
		if !recurring {
			interval = ""
		}
		if err := checkRecurrence(recurring, interval); err != nil {
			return unchanged(t), err
		}
		changed = changed || recurring != next.IsRecurring || interval != next.RecurrenceInterval
		next.IsRecurring = recurring
		next.RecurrenceInterval = interval
	}

	out := Outcome{Task: next, Changed: changed}
	if opts.Priority != nil {
		res, err := e.ChangePriority(out.Task, *opts.Priority, opts.ActorID)
		if err != nil {
			return unchanged(t), err
		}
		out.Task = res.Task
		out.Changed = out.Changed || res.Changed
	}
	if opts.Status != nil {
		res, err := e.ChangeStatus(out.Task, *opts.Status, opts.ActorID)
		if err != nil {
			return unchanged(t), err
		}
		out.Task = res.Task
		out.Spawned = res.Spawned
		out.Changed = out.Changed || res.Changed
	}
	if !out.Changed {
		return unchanged(t), nil
	}
	return out, nil
}

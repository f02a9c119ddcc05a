package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskflow/internal/domain"
)

// Audit action texts. They are stored verbatim in the task's audit log.
const (
	ActionCreated       = "Task created"
	ActionCommentAdded  = "Added a comment"
	statusChangedFmt    = "Status changed to %s"
	priorityChangedFmt  = "Priority changed to %s"
	attachmentsAddedFmt = "Added %d attachment(s)"
	recurrenceFmt       = "Recurring task created from #%s"
)

func StatusChanged(s domain.Status) string { return fmt.Sprintf(statusChangedFmt, s) }
func PriorityChanged(p domain.Priority) string { return fmt.Sprintf(priorityChangedFmt, p) }
func AttachmentsAdded(n int) string { return fmt.Sprintf(attachmentsAddedFmt, n) }
func RecurrenceSpawned(originalID string) string { return fmt.Sprintf(recurrenceFmt, originalID) }

type Writer struct {
	Now   func() time.Time
	NewID func() string
}

// Entry builds a timestamped audit entry without attaching it anywhere.
func (w Writer) Entry(actorID, action string) domain.AuditLogEntry {
	if w.Now == nil {
		w.Now = time.Now
	}
	if w.NewID == nil {
		w.NewID = uuid.NewString
	}
	if actorID == "" {
		actorID = domain.SystemUserID
	}
	return domain.AuditLogEntry{
		ID:        w.NewID(),
		UserID:    actorID,
		Action:    action,
		Timestamp: w.Now().UTC(),
	}
}

// Append adds exactly one entry to the task's log.
func (w Writer) Append(t *domain.Task, actorID, action string) {
	t.AuditLog = append(t.AuditLog, w.Entry(actorID, action))
}

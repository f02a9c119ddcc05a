package engine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"taskflow/internal/attach"
	"taskflow/internal/domain"
	"taskflow/internal/engine"
	"taskflow/internal/seed"
)

var fixedNow = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) engine.Engine {
	t.Helper()
	n := 0
	eng := engine.New()
	eng.Now = func() time.Time { return fixedNow }
	eng.NewID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return eng
}

func mustCreate(t *testing.T, eng engine.Engine, opts engine.TaskCreateOptions) domain.Task {
	t.Helper()
	if opts.Title == "" {
		opts.Title = "Do work"
	}
	if opts.DueDate.IsZero() {
		opts.DueDate = fixedNow.AddDate(0, 0, 3)
	}
	if opts.ActorID == "" {
		opts.ActorID = "u1"
	}
	task, err := eng.CreateTask(opts)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func TestCreateTaskDefaults(t *testing.T) {
	eng := newTestEngine(t)
	task := mustCreate(t, eng, engine.TaskCreateOptions{Title: "  Ship it  ", AssigneeIDs: []string{"u2", "u2", "u3"}})
	if task.Title != "Ship it" {
		t.Fatalf("title not trimmed: %q", task.Title)
	}
	if task.Status != domain.StatusTodo || task.Priority != domain.PriorityMedium {
		t.Fatalf("unexpected defaults: %s %s", task.Status, task.Priority)
	}
	if len(task.AssigneeIDs) != 2 {
		t.Fatalf("expected deduplicated assignees, got %v", task.AssigneeIDs)
	}
	if task.Comments == nil || task.Attachments == nil {
		t.Fatalf("nested collections should be empty, not nil")
	}
	if len(task.AuditLog) != 1 || task.AuditLog[0].Action != "Task created" || task.AuditLog[0].UserID != "u1" {
		t.Fatalf("unexpected audit log: %+v", task.AuditLog)
	}
}

func TestCreateTaskRejectsInvalidInput(t *testing.T) {
	eng := newTestEngine(t)
	cases := []engine.TaskCreateOptions{
		{Title: "   ", DueDate: fixedNow},
		{Title: "no due"},
		{Title: "bad status", DueDate: fixedNow, Status: "Blocked"},
		{Title: "bad priority", DueDate: fixedNow, Priority: "Urgent"},
		{Title: "recurring without interval", DueDate: fixedNow, IsRecurring: true},
		{Title: "interval without recurring", DueDate: fixedNow, RecurrenceInterval: domain.RecurDaily},
	}
	for _, opts := range cases {
		if _, err := eng.CreateTask(opts); !errors.Is(err, engine.ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", opts.Title, err)
		}
	}
}

func TestChangeStatusIsIdempotent(t *testing.T) {
	eng := newTestEngine(t)
	task := mustCreate(t, eng, engine.TaskCreateOptions{})
	out, err := eng.ChangeStatus(task, domain.StatusTodo, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if out.Changed || out.Spawned != nil || len(out.Task.AuditLog) != 1 {
		t.Fatalf("expected no-op, got %+v", out)
	}
	out, err = eng.ChangeStatus(task, domain.StatusInProgress, "u2")
	if err != nil {
		t.Fatal(err)
	}
	last := out.Task.AuditLog[len(out.Task.AuditLog)-1]
	if !out.Changed || last.Action != "Status changed to In Progress" || last.UserID != "u2" {
		t.Fatalf("unexpected audit entry: %+v", last)
	}
	if len(task.AuditLog) != 1 {
		t.Fatalf("input task was mutated")
	}
}

func TestCompletingRecurringTaskSpawnsSibling(t *testing.T) {
	intervals := map[domain.RecurrenceInterval]time.Time{
		domain.RecurDaily:   time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC),
		domain.RecurWeekly:  time.Date(2024, 3, 17, 12, 0, 0, 0, time.UTC),
		domain.RecurMonthly: time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC),
	}
	due := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	for interval, want := range intervals {
		eng := newTestEngine(t)
		task := mustCreate(t, eng, engine.TaskCreateOptions{
			DueDate:            due,
			Priority:           domain.PriorityHigh,
			AssigneeIDs:        []string{"u2"},
			IsRecurring:        true,
			RecurrenceInterval: interval,
		})
		out, err := eng.ChangeStatus(task, domain.StatusCompleted, "u2")
		if err != nil {
			t.Fatalf("%s: %v", interval, err)
		}
		if out.Task.ID != task.ID || out.Task.Status != domain.StatusCompleted {
			t.Fatalf("%s: original not retained as completed", interval)
		}
		sib := out.Spawned
		if sib == nil {
			t.Fatalf("%s: expected sibling", interval)
		}
		if sib.ID == task.ID || sib.Status != domain.StatusTodo || !sib.DueDate.Equal(want) {
			t.Fatalf("%s: unexpected sibling %+v", interval, sib)
		}
		if sib.Priority != domain.PriorityHigh || !sib.IsRecurring || sib.RecurrenceInterval != interval || sib.AssigneeIDs[0] != "u2" {
			t.Fatalf("%s: sibling did not copy fields", interval)
		}
		if len(sib.AuditLog) != 1 || sib.AuditLog[0].UserID != domain.SystemUserID ||
			sib.AuditLog[0].Action != "Recurring task created from #"+task.ID {
			t.Fatalf("%s: unexpected sibling audit %+v", interval, sib.AuditLog)
		}
	}
}

func TestCompletingNonRecurringOrCompletedTaskSpawnsNothing(t *testing.T) {
	eng := newTestEngine(t)
	task := mustCreate(t, eng, engine.TaskCreateOptions{})
	out, err := eng.ChangeStatus(task, domain.StatusCompleted, "u1")
	if err != nil || out.Spawned != nil {
		t.Fatalf("non-recurring completion spawned: %v %+v", err, out.Spawned)
	}
	rec := mustCreate(t, eng, engine.TaskCreateOptions{Status: domain.StatusCompleted, IsRecurring: true, RecurrenceInterval: domain.RecurDaily})
	out, err = eng.ChangeStatus(rec, domain.StatusCompleted, "u1")
	if err != nil || out.Spawned != nil || out.Changed {
		t.Fatalf("completed to completed should be a no-op")
	}
	// reopening then completing again spawns
	out, _ = eng.ChangeStatus(rec, domain.StatusTodo, "u1")
	if out.Spawned != nil {
		t.Fatalf("reopen spawned")
	}
	out, _ = eng.ChangeStatus(out.Task, domain.StatusCompleted, "u1")
	if out.Spawned == nil {
		t.Fatalf("re-completion did not spawn")
	}
}

func TestNextDueDateMonthEnd(t *testing.T) {
	jan31 := time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC)
	got, err := engine.NextDueDate(jan31, domain.RecurMonthly, engine.MonthEndClamp)
	if err != nil || !got.Equal(time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("clamp: %v %v", got, err)
	}
	got, _ = engine.NextDueDate(jan31, domain.RecurMonthly, engine.MonthEndRoll)
	if !got.Equal(time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("roll: %v", got)
	}
	dec31 := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	got, _ = engine.NextDueDate(dec31, domain.RecurMonthly, engine.MonthEndClamp)
	if !got.Equal(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("year wrap: %v", got)
	}
	if _, err := engine.NextDueDate(dec31, "yearly", engine.MonthEndClamp); !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("expected invalid interval error, got %v", err)
	}
}

func TestChangePriority(t *testing.T) {
	eng := newTestEngine(t)
	task := mustCreate(t, eng, engine.TaskCreateOptions{})
	out, err := eng.ChangePriority(task, domain.PriorityHigh, "u1")
	if err != nil || !out.Changed || out.Task.AuditLog[1].Action != "Priority changed to High" {
		t.Fatalf("unexpected outcome: %v %+v", err, out)
	}
	if _, err := eng.ChangePriority(task, "Critical", "u1"); !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestAddCommentIgnoresWhitespace(t *testing.T) {
	eng := newTestEngine(t)
	task := mustCreate(t, eng, engine.TaskCreateOptions{})
	out := eng.AddComment(task, "   ", "u2")
	if out.Changed || len(out.Task.Comments) != 0 || len(out.Task.AuditLog) != 1 {
		t.Fatalf("whitespace comment changed the task")
	}
	out = eng.AddComment(task, " looks good ", "u2")
	if len(out.Task.Comments) != 1 || out.Task.Comments[0].Content != "looks good" || out.Task.Comments[0].UserID != "u2" {
		t.Fatalf("unexpected comments: %+v", out.Task.Comments)
	}
	if !out.Task.Comments[0].Timestamp.Equal(fixedNow) {
		t.Fatalf("comment timestamp not from clock")
	}
	if out.Task.AuditLog[1].Action != "Added a comment" {
		t.Fatalf("missing comment audit")
	}
}

func TestAddAttachments(t *testing.T) {
	eng := newTestEngine(t)
	task := mustCreate(t, eng, engine.TaskCreateOptions{})
	ctx := context.Background()

	out, err := eng.AddAttachments(ctx, task, nil, "u1")
	if err != nil || out.Changed {
		t.Fatalf("empty upload should be a no-op")
	}

	out, err = eng.AddAttachments(ctx, task, []attach.Upload{
		{Name: "a.txt", ContentType: "text/plain", Content: strings.NewReader("a")},
		{Name: "b.txt", ContentType: "text/plain", Content: strings.NewReader("b")},
	}, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Task.Attachments) != 2 || out.Task.Attachments[0].Name != "a.txt" || out.Task.Attachments[1].Name != "b.txt" {
		t.Fatalf("attachments out of order: %+v", out.Task.Attachments)
	}
	if out.Task.AuditLog[len(out.Task.AuditLog)-1].Action != "Added 2 attachment(s)" {
		t.Fatalf("unexpected audit %+v", out.Task.AuditLog)
	}

	eng.Uploads = attach.DataURLEncoder{MaxSize: 1}
	_, err = eng.AddAttachments(ctx, task, []attach.Upload{
		{Name: "ok.txt", Content: strings.NewReader("a")},
		{Name: "big.txt", Content: strings.NewReader("too big")},
	}, "u1")
	if !errors.Is(err, attach.ErrTooLarge) {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestUpdateTask(t *testing.T) {
	eng := newTestEngine(t)
	task := mustCreate(t, eng, engine.TaskCreateOptions{IsRecurring: true, RecurrenceInterval: domain.RecurWeekly})

	title := "Renamed"
	out, err := eng.UpdateTask(task, engine.TaskUpdateOptions{Title: &title, ActorID: "u1"})
	if err != nil || !out.Changed || out.Task.Title != "Renamed" || len(out.Task.AuditLog) != 1 {
		t.Fatalf("plain edit should change without audit: %v %+v", err, out)
	}

	same := task.Title
	out, _ = eng.UpdateTask(task, engine.TaskUpdateOptions{Title: &same})
	if out.Changed {
		t.Fatalf("unchanged edit reported change")
	}

	status := domain.StatusCompleted
	prio := domain.PriorityLow
	out, err = eng.UpdateTask(task, engine.TaskUpdateOptions{Title: &title, Priority: &prio, Status: &status, ActorID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Task.AuditLog) != 3 || out.Spawned == nil || out.Spawned.Title != "Renamed" || out.Spawned.Priority != domain.PriorityLow {
		t.Fatalf("combined edit: %+v", out)
	}

	off := false
	out, err = eng.UpdateTask(task, engine.TaskUpdateOptions{IsRecurring: &off})
	if err != nil || out.Task.IsRecurring || out.Task.RecurrenceInterval != "" {
		t.Fatalf("turning recurrence off should clear interval: %v %+v", err, out.Task)
	}

	blank := " "
	if _, err := eng.UpdateTask(task, engine.TaskUpdateOptions{Title: &blank}); !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("expected invalid title error, got %v", err)
	}
}

func TestCollectionHelpers(t *testing.T) {
	eng := newTestEngine(t)
	a := mustCreate(t, eng, engine.TaskCreateOptions{Title: "a"})
	b := mustCreate(t, eng, engine.TaskCreateOptions{Title: "b", IsRecurring: true, RecurrenceInterval: domain.RecurDaily})
	tasks := engine.InsertTask(engine.InsertTask(nil, a), b)

	out, err := eng.ChangeStatus(b, domain.StatusCompleted, "u1")
	if err != nil {
		t.Fatal(err)
	}
	next := engine.Apply(tasks, out)
	if len(next) != 3 || next[1].Status != domain.StatusCompleted || next[2].ID != out.Spawned.ID {
		t.Fatalf("apply: %+v", next)
	}
	if tasks[1].Status != domain.StatusTodo {
		t.Fatalf("apply mutated its input")
	}

	next, ok := engine.RemoveTask(next, a.ID)
	if !ok || len(next) != 2 {
		t.Fatalf("delete failed")
	}
	again, ok := engine.RemoveTask(next, a.ID)
	if ok || len(again) != 2 {
		t.Fatalf("second delete should be a no-op")
	}
	if _, found := engine.FindTask(again, a.ID); found {
		t.Fatalf("deleted task still found")
	}
}

func TestCompletingSeededMonthlyTask(t *testing.T) {
	eng := newTestEngine(t)
	tasks := seed.Tasks(fixedNow)
	t4, ok := engine.FindTask(tasks, "t4")
	if !ok {
		t.Fatal("t4 missing from seed")
	}
	// t4 ships completed; reopen it first
	t4.Status = domain.StatusInProgress
	out, err := eng.ChangeStatus(t4, domain.StatusCompleted, "u1")
	if err != nil {
		t.Fatal(err)
	}
	sib := out.Spawned
	if sib == nil {
		t.Fatal("expected a new occurrence")
	}
	if !sib.DueDate.Equal(t4.DueDate.AddDate(0, 1, 0)) || sib.Status != domain.StatusTodo {
		t.Fatalf("unexpected occurrence: %+v", sib)
	}
	if len(sib.Comments) != 0 || len(sib.Attachments) != 0 || len(sib.AuditLog) != 1 {
		t.Fatalf("occurrence should start with empty history")
	}
	if !strings.Contains(sib.AuditLog[0].Action, "#t4") {
		t.Fatalf("audit does not reference t4: %s", sib.AuditLog[0].Action)
	}
}

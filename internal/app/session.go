package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"

	"taskflow/internal/attach"
	"taskflow/internal/domain"
	"taskflow/internal/engine"
	"taskflow/internal/query"
	"taskflow/internal/store"
)

var (
	ErrTaskNotFound         = engine.ErrTaskNotFound
	ErrTaskBusy             = errors.New("task has an attachment upload in progress")
	ErrConfirmationRequired = errors.New("deletion must be confirmed")
	ErrUserNotFound         = errors.New("user not found")
)

// Session owns the authoritative task list and current user. Intents are
// applied one at a time and persisted before they become visible.
type Session struct {
	mu      sync.Mutex
	kv      store.KV
	engine  engine.Engine
	users   []domain.User
	tasks   []domain.Task
	current domain.User
	busy    map[string]bool
	logger  *log.Logger
}

type SessionOptions struct {
	KV     store.KV
	Engine engine.Engine
	Users  []domain.User
	// SeedTasks is used when no task list is stored yet.
	SeedTasks []domain.Task
	Logger    *log.Logger
}

// NewSession loads persisted state, falling back to the seed tasks and the
// first roster user.
func NewSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	if opts.KV == nil {
		return nil, errors.New("session store is required")
	}
	if len(opts.Users) == 0 {
		return nil, errors.New("session needs at least one user")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	seedTasks := opts.SeedTasks
	if seedTasks == nil {
		seedTasks = []domain.Task{}
	}
	s := &Session{
		kv:     opts.KV,
		engine: opts.Engine,
		users:  append([]domain.User(nil), opts.Users...),
		busy:   map[string]bool{},
		logger: logger,
	}
	s.tasks = store.Load(ctx, opts.KV, store.KeyTasks, seedTasks, logger)
	if s.tasks == nil {
		s.tasks = []domain.Task{}
	}
	stored := store.Load(ctx, opts.KV, store.KeyCurrentUser, opts.Users[0], logger)
	if u, ok := domain.FindUser(s.users, stored.ID); ok {
		s.current = u
	} else {
		logger.Printf("session: stored current user %q is not on the roster; using %s", stored.ID, opts.Users[0].ID)
		s.current = opts.Users[0]
	}
	return s, nil
}

func (s *Session) Users() []domain.User {
	return append([]domain.User(nil), s.users...)
}

// User looks up a roster member.
func (s *Session) User(id string) (domain.User, error) {
	u, ok := domain.FindUser(s.users, id)
	if !ok {
		return domain.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	return u, nil
}

func (s *Session) CurrentUser() domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SwitchUser makes id the current user and persists the choice.
func (s *Session) SwitchUser(ctx context.Context, id string) (domain.User, error) {
	u, err := s.User(id)
	if err != nil {
		return domain.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := store.Save(ctx, s.kv, store.KeyCurrentUser, u); err != nil {
		return domain.User{}, err
	}
	s.current = u
	return u, nil
}

// Tasks returns a copy of the full task list in stored order.
func (s *Session) Tasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Task(nil), s.tasks...)
}

func (s *Session) Visible(actor domain.User, f query.TaskFilters) []domain.Task {
	return query.Visible(s.Tasks(), actor, f)
}

func (s *Session) Task(id string) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := engine.FindTask(s.tasks, id)
	if !ok {
		return domain.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return t.Clone(), nil
}

func (s *Session) Audit(id string) ([]domain.AuditLogEntry, error) {
	t, err := s.Task(id)
	if err != nil {
		return nil, err
	}
	return slices.Clone(t.AuditLog), nil
}

func (s *Session) checkAssignees(ids []string) error {
	for _, id := range ids {
		if _, ok := domain.FindUser(s.users, id); !ok {
			return fmt.Errorf("%w: unknown assignee %s", engine.ErrInvalidInput, id)
		}
	}
	return nil
}

func (s *Session) CreateTask(ctx context.Context, opts engine.TaskCreateOptions) (domain.Task, error) {
	if err := s.checkAssignees(opts.AssigneeIDs); err != nil {
		return domain.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.engine.CreateTask(opts)
	if err != nil {
		return domain.Task{}, err
	}
	if err := s.commit(ctx, engine.InsertTask(s.tasks, t)); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (s *Session) UpdateTask(ctx context.Context, id string, opts engine.TaskUpdateOptions) (engine.Outcome, error) {
	if opts.AssigneeIDs != nil {
		if err := s.checkAssignees(*opts.AssigneeIDs); err != nil {
			return engine.Outcome{}, err
		}
	}
	return s.mutate(ctx, id, func(t domain.Task) (engine.Outcome, error) {
		return s.engine.UpdateTask(t, opts)
	})
}

func (s *Session) ChangeStatus(ctx context.Context, id string, status domain.Status, actorID string) (engine.Outcome, error) {
	return s.mutate(ctx, id, func(t domain.Task) (engine.Outcome, error) {
		return s.engine.ChangeStatus(t, status, actorID)
	})
}

func (s *Session) ChangePriority(ctx context.Context, id string, p domain.Priority, actorID string) (engine.Outcome, error) {
	return s.mutate(ctx, id, func(t domain.Task) (engine.Outcome, error) {
		return s.engine.ChangePriority(t, p, actorID)
	})
}

func (s *Session) AddComment(ctx context.Context, id, content, actorID string) (engine.Outcome, error) {
	return s.mutate(ctx, id, func(t domain.Task) (engine.Outcome, error) {
		return s.engine.AddComment(t, content, actorID), nil
	})
}

// AddAttachments converts uploads without holding the session lock. While
// the conversion runs the task is marked busy and rejects other intents;
// other tasks stay mutable.
func (s *Session) AddAttachments(ctx context.Context, id string, uploads []attach.Upload, actorID string) (engine.Outcome, error) {
	s.mu.Lock()
	t, err := s.lookupLocked(id)
	if err != nil {
		s.mu.Unlock()
		return engine.Outcome{}, err
	}
	s.busy[id] = true
	s.mu.Unlock()

	out, err := s.engine.AddAttachments(ctx, t, uploads, actorID)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, id)
	if err != nil {
		return engine.Outcome{Task: t}, err
	}
	if !out.Changed {
		return out, nil
	}
	if err := s.commit(ctx, engine.Apply(s.tasks, out)); err != nil {
		return engine.Outcome{Task: t}, err
	}
	return out, nil
}

// DeleteTask removes a task once confirmed. Deleting an unknown id is not an
// error; the returned bool reports whether anything was removed.
func (s *Session) DeleteTask(ctx context.Context, id string, confirmed bool) (bool, error) {
	if !confirmed {
		return false, ErrConfirmationRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[id] {
		return false, ErrTaskBusy
	}
	next, removed := engine.RemoveTask(s.tasks, id)
	if !removed {
		return false, nil
	}
	if err := s.commit(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Session) lookupLocked(id string) (domain.Task, error) {
	t, ok := engine.FindTask(s.tasks, id)
	if !ok {
		return domain.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if s.busy[id] {
		return domain.Task{}, fmt.Errorf("%w: %s", ErrTaskBusy, id)
	}
	return t, nil
}

func (s *Session) mutate(ctx context.Context, id string, fn func(domain.Task) (engine.Outcome, error)) (engine.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookupLocked(id)
	if err != nil {
		return engine.Outcome{}, err
	}
	out, err := fn(t)
	if err != nil {
		return engine.Outcome{Task: t}, err
	}
	if !out.Changed {
		return out, nil
	}
	if err := s.commit(ctx, engine.Apply(s.tasks, out)); err != nil {
		return engine.Outcome{Task: t}, err
	}
	return out, nil
}

// commit persists next and only then swaps it in. Callers hold s.mu.
func (s *Session) commit(ctx context.Context, next []domain.Task) error {
	if err := store.Save(ctx, s.kv, store.KeyTasks, next); err != nil {
		s.logger.Printf("session: %v", err)
		return err
	}
	s.tasks = next
	return nil
}

package engine

import "taskflow/internal/domain"

// FindTask returns the task with id from the collection.
func FindTask(tasks []domain.Task, id string) (domain.Task, bool) {
	if i := indexOf(tasks, id); i >= 0 {
		return tasks[i], true
	}
	return domain.Task{}, false
}

func indexOf(tasks []domain.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// InsertTask appends t to a copy of the collection.
func InsertTask(tasks []domain.Task, t domain.Task) []domain.Task {
	next := make([]domain.Task, 0, len(tasks)+1)
	next = append(next, tasks...)
	return append(next, t)
}

// Apply folds an outcome into a copy of the collection: the updated task
// replaces its previous version in place and a spawned sibling goes last.
func Apply(tasks []domain.Task, out Outcome) []domain.Task {
	next := make([]domain.Task, len(tasks), len(tasks)+1)
	copy(next, tasks)
	if i := indexOf(next, out.Task.ID); i >= 0 {
		next[i] = out.Task
	}
	if out.Spawned != nil {
		next = append(next, *out.Spawned)
	}
	return next
}

// RemoveTask drops the task with id. Unknown ids leave the collection as is.
func RemoveTask(tasks []domain.Task, id string) ([]domain.Task, bool) {
	i := indexOf(tasks, id)
	if i < 0 {
		return tasks, false
	}
	next := make([]domain.Task, 0, len(tasks)-1)
	next = append(next, tasks[:i]...)
	return append(next, tasks[i+1:]...), true
}

// Package query derives the ordered subset of tasks a user sees.
package query

import (
	"sort"
	"strings"

	"taskflow/internal/domain"
)

// All disables a filter. An empty value means the same.
const All = "ALL"

type TaskFilters struct {
	SearchTerm string
	Status     string
	Priority   string
	AssigneeID string
}

func active(v string) bool {
	return v != "" && !strings.EqualFold(v, All)
}

// Visible scopes tasks to what actor may see, applies the filters in order
// and sorts by due date. Ties keep their input order. The input is not
// modified.
func Visible(tasks []domain.Task, actor domain.User, f TaskFilters) []domain.Task {
	manager := actor.Role == domain.RoleManager
	term := strings.ToLower(f.SearchTerm)
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if !manager && !t.HasAssignee(actor.ID) {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(t.Title), term) &&
			!strings.Contains(strings.ToLower(t.Description), term) {
			continue
		}
		if active(f.Status) && string(t.Status) != f.Status {
			continue
		}
		if active(f.Priority) && string(t.Priority) != f.Priority {
			continue
		}
		// members are already scoped to themselves
		if manager && active(f.AssigneeID) && !t.HasAssignee(f.AssigneeID) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DueDate.Before(out[j].DueDate)
	})
	return out
}

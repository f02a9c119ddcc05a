package auth

import (
	"fmt"

	"taskflow/internal/domain"
)

// Permission names reported by ForbiddenError.
const (
	PermViewTask      = "task.view"
	PermViewDashboard = "dashboard.view"
)

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Permission)
}

// CanView reports whether user may see task. Managers see everything,
// members only tasks they are assigned to.
func CanView(user domain.User, task domain.Task) bool {
	return user.Role == domain.RoleManager || task.HasAssignee(user.ID)
}

func RequireView(user domain.User, task domain.Task) error {
	if !CanView(user, task) {
		return ForbiddenError{Permission: PermViewTask}
	}
	return nil
}

func RequireManager(user domain.User) error {
	if user.Role != domain.RoleManager {
		return ForbiddenError{Permission: PermViewDashboard}
	}
	return nil
}

// Package report derives read-only views over the task list: dashboard
// metrics for managers and the month calendar grid.
package report

import (
	"math"
	"strings"
	"time"

	"taskflow/internal/domain"
)

type StatusCount struct {
	Status domain.Status `json:"status"`
	Count  int           `json:"count"`
}

// MemberStats counts tasks for one Member-role user.
type MemberStats struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Overdue   int    `json:"overdue"`
	Completed int    `json:"completed"`
}

type Metrics struct {
	GeneratedAt    time.Time     `json:"generated_at"`
	Total          int           `json:"total"`
	Completed      int           `json:"completed"`
	Overdue        int           `json:"overdue"`
	CompletionRate int           `json:"completion_rate"`
	ByStatus       []StatusCount `json:"by_status"`
	Members        []MemberStats `json:"members"`
}

// Dashboard computes team metrics at now. Completion rate is a rounded
// percentage, 0 for an empty list.
func Dashboard(tasks []domain.Task, users []domain.User, now time.Time) Metrics {
	m := Metrics{GeneratedAt: now.UTC(), Total: len(tasks)}
	counts := map[domain.Status]int{}
	for _, t := range tasks {
		counts[t.Status]++
		if t.IsOverdue(now) {
			m.Overdue++
		}
	}
	m.Completed = counts[domain.StatusCompleted]
	if m.Total > 0 {
		m.CompletionRate = int(math.Round(float64(m.Completed) / float64(m.Total) * 100))
	}
	m.ByStatus = make([]StatusCount, 0, len(domain.Statuses))
	for _, s := range domain.Statuses {
		m.ByStatus = append(m.ByStatus, StatusCount{Status: s, Count: counts[s]})
	}
	m.Members = []MemberStats{}
	for _, u := range users {
		if u.Role != domain.RoleMember {
			continue
		}
		first, _, _ := strings.Cut(u.Name, " ")
		stats := MemberStats{UserID: u.ID, Name: first}
		for _, t := range tasks {
			if !t.HasAssignee(u.ID) {
				continue
			}
			if t.IsOverdue(now) {
				stats.Overdue++
			}
			if t.Status == domain.StatusCompleted {
				stats.Completed++
			}
		}
		m.Members = append(m.Members, stats)
	}
	return m
}

// DateKey buckets an instant by its UTC calendar date.
func DateKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

type Day struct {
	Date         string        `json:"date"`
	InMonth      bool          `json:"in_month"`
	IsToday      bool          `json:"is_today"`
	Tasks        []domain.Task `json:"tasks"`
	OverdueCount int           `json:"overdue_count"`
}

type Calendar struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Weeks [][]Day    `json:"weeks"`
}

// MonthGrid lays out month as whole weeks, Sunday first, from the Sunday on
// or before the 1st to the Saturday on or after the last day. Tasks keep
// their input order within a day.
func MonthGrid(tasks []domain.Task, year int, month time.Month, now time.Time) Calendar {
	byDate := map[string][]domain.Task{}
	for _, t := range tasks {
		k := DateKey(t.DueDate)
		byDate[k] = append(byDate[k], t)
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	start := first.AddDate(0, 0, -int(first.Weekday()))
	end := last.AddDate(0, 0, int(time.Saturday-last.Weekday()))
	today := DateKey(now)

	cal := Calendar{Year: year, Month: month}
	var week []Day
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		k := DateKey(d)
		day := Day{
			Date:    k,
			InMonth: d.Month() == month,
			IsToday: k == today,
			Tasks:   byDate[k],
		}
		if day.Tasks == nil {
			day.Tasks = []domain.Task{}
		}
		for _, t := range day.Tasks {
			if t.IsOverdue(now) {
				day.OverdueCount++
			}
		}
		week = append(week, day)
		if len(week) == 7 {
			cal.Weeks = append(cal.Weeks, week)
			week = nil
		}
	}
	return cal
}

// ParseMonth reads a YYYY-MM value. Empty means the month containing now.
func ParseMonth(s string, now time.Time) (int, time.Month, error) {
	if s == "" {
		now = now.UTC()
		return now.Year(), now.Month(), nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, err
	}
	return t.Year(), t.Month(), nil
}

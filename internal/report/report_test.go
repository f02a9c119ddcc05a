package report_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/domain"
	"taskflow/internal/report"
	"taskflow/internal/seed"
)

var now = time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

func TestDashboardOnSeed(t *testing.T) {
	m := report.Dashboard(seed.Tasks(now), seed.Users(), now)
	assert.Equal(t, 6, m.Total)
	assert.Equal(t, 1, m.Completed)
	// t4 is past due but completed
	assert.Equal(t, 0, m.Overdue)
	assert.Equal(t, 17, m.CompletionRate)
	assert.Equal(t, []report.StatusCount{
		{Status: domain.StatusTodo, Count: 3},
		{Status: domain.StatusInProgress, Count: 2},
		{Status: domain.StatusCompleted, Count: 1},
	}, m.ByStatus)
	require.Len(t, m.Members, 3)
	assert.Equal(t, "Brenda", m.Members[0].Name)
}

func TestDashboardCountsOverdueForMembers(t *testing.T) {
	later := now.Add(3 * 24 * time.Hour)
	m := report.Dashboard(seed.Tasks(now), seed.Users(), later)
	// t1 (+2d, u3), t5 (+1d, u2 u3), t6 (+12h, u1) have passed
	assert.Equal(t, 3, m.Overdue)
	byID := map[string]report.MemberStats{}
	for _, ms := range m.Members {
		byID[ms.UserID] = ms
	}
	assert.Equal(t, 1, byID["u2"].Overdue)
	assert.Equal(t, 2, byID["u3"].Overdue)
	assert.Equal(t, 0, byID["u4"].Overdue)
}

func TestDashboardEmpty(t *testing.T) {
	m := report.Dashboard(nil, nil, now)
	assert.Zero(t, m.CompletionRate)
	assert.NotNil(t, m.Members)
}

func TestMonthGrid(t *testing.T) {
	cal := report.MonthGrid(seed.Tasks(now), 2024, time.May, now)
	// May 2024 starts on a Wednesday and ends on a Friday
	require.Len(t, cal.Weeks, 5)
	assert.Equal(t, "2024-04-28", cal.Weeks[0][0].Date)
	assert.False(t, cal.Weeks[0][0].InMonth)
	assert.Equal(t, "2024-06-01", cal.Weeks[4][6].Date)

	var today report.Day
	found := map[string]string{}
	for _, w := range cal.Weeks {
		require.Len(t, w, 7)
		for _, d := range w {
			if d.IsToday {
				today = d
			}
			for _, task := range d.Tasks {
				found[task.ID] = d.Date
			}
		}
	}
	assert.Equal(t, "2024-05-15", today.Date)
	assert.Equal(t, "2024-05-14", found["t4"])
	assert.Equal(t, "2024-05-16", found["t5"])
	assert.Len(t, found, 6)
}

func TestParseMonth(t *testing.T) {
	y, m, err := report.ParseMonth("", now)
	require.NoError(t, err)
	assert.Equal(t, 2024, y)
	assert.Equal(t, time.May, m)

	y, m, err = report.ParseMonth("2023-02", now)
	require.NoError(t, err)
	assert.Equal(t, 2023, y)
	assert.Equal(t, time.February, m)

	_, _, err = report.ParseMonth("Feb 2023", now)
	assert.Error(t, err)
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WritePDF(&buf, report.Dashboard(seed.Tasks(now), seed.Users(), now)))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

package tasklist

import (
	"math"
	"sort"
	"time"
)

// FilterEligible keeps tasks with an active status and a P0-P3 priority.
// P4/None and inactive statuses never reach grouping or urgency views.
func FilterEligible(tasks []Task, active map[string]bool) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if !active[t.Status] {
			continue
		}
		if PriorityRank(t.Priority) > PriorityRank(PriorityP3) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// GroupByAssignee partitions tasks by assignee id, dropping unassigned
// tasks from this view. Each group is sorted by priority rank; ties keep
// input order.
func GroupByAssignee(tasks []Task) map[string][]Task {
	grouped := make(map[string][]Task)
	for _, t := range tasks {
		if t.AssigneeID == "" {
			continue
		}
		grouped[t.AssigneeID] = append(grouped[t.AssigneeID], t)
	}
	for id := range grouped {
		group := grouped[id]
		sort.SliceStable(group, func(i, j int) bool {
			return PriorityRank(group[i].Priority) < PriorityRank(group[j].Priority)
		})
	}
	return grouped
}

// DueSoonTask is a task due within the next two days, annotated with how
// many days remain (0 = today, 1 = tomorrow).
type DueSoonTask struct {
	Task
	DaysUntil int
}

// Urgency holds the overdue and due-soon views, each in stable input order.
type Urgency struct {
	Overdue []Task
	DueSoon []DueSoonTask
}

const dueDateLayout = "2006-01-02"

// ClassifyUrgency computes urgency relative to the start of day in loc.
// now is taken once by the caller so a run cannot straddle a date rollover.
// Tasks without a parseable due date or without an active status are
// excluded from both sets.
func ClassifyUrgency(tasks []Task, now time.Time, loc *time.Location, active map[string]bool) Urgency {
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	var u Urgency
	for _, t := range tasks {
		if t.Due == "" || !active[t.Status] {
			continue
		}
		due, err := time.ParseInLocation(dueDateLayout, t.Due, loc)
		if err != nil {
			continue
		}
		if due.Before(today) {
			u.Overdue = append(u.Overdue, t)
			continue
		}
		days := int(math.Round(due.Sub(today).Hours() / 24))
		if days == 0 || days == 1 {
			u.DueSoon = append(u.DueSoon, DueSoonTask{Task: t, DaysUntil: days})
		}
	}
	return u
}

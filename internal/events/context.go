package events

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ikhorlabs/chanbot/internal/tasklist"
)

const notesMaxChars = 150

var statusHeaders = map[string]string{
	"ToDo":        "📝 ToDo Tasks:",
	"In Progress": "🚀 In Progress:",
	"In Review":   "👀 In Review:",
}

func statusHeader(status string) string {
	if h, ok := statusHeaders[status]; ok {
		return h
	}
	return status + ":"
}

// tasksContext renders the current list as compact text grouped by status
// in the persona's ContextStatuses order, priority-sorted within each
// group. Any failure degrades to an empty context.
func (h *Handler) tasksContext(ctx context.Context, log *slog.Logger) string {
	cfg := h.Persona
	items, err := h.Slack.ListItems(ctx, cfg.ListID, cfg.FetchLimit)
	if err != nil {
		log.Warn("mention_context_fetch_error", "error", err.Error())
		return ""
	}
	loc, err := cfg.Location()
	if err != nil {
		return ""
	}
	nowFn := h.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	today := startOfDay(nowFn(), loc)

	tasks := tasklist.NewNormalizer(cfg.Schema, log).NormalizeAll(items)
	byStatus := make(map[string][]tasklist.Task, len(cfg.ContextStatuses))
	for _, t := range tasks {
		for _, status := range cfg.ContextStatuses {
			if t.Status == status {
				byStatus[status] = append(byStatus[status], t)
				break
			}
		}
	}

	var sections []string
	for i, status := range cfg.ContextStatuses {
		group := byStatus[status]
		if len(group) == 0 {
			continue
		}
		sortByPriority(group)
		limit := 20
		if i == 0 {
			limit = 30
		}
		if len(group) > limit {
			group = group[:limit]
		}
		if len(sections) > 0 {
			sections = append(sections, "")
		}
		sections = append(sections, statusHeader(status))
		for _, t := range group {
			sections = append(sections, h.formatTaskLine(t, today, loc))
		}
	}
	return strings.Join(sections, "\n")
}

func sortByPriority(tasks []tasklist.Task) {
	// insertion sort keeps input order for equal priorities
	for i := 1; i < len(tasks); i++ {
		for j := i; j > 0 && tasklist.PriorityRank(tasks[j].Priority) < tasklist.PriorityRank(tasks[j-1].Priority); j-- {
			tasks[j], tasks[j-1] = tasks[j-1], tasks[j]
		}
	}
}

func (h *Handler) formatTaskLine(t tasklist.Task, today time.Time, loc *time.Location) string {
	assignee := h.Persona.UserNames[t.AssigneeID]
	if assignee == "" {
		if t.AssigneeID != "" {
			assignee = "<@" + t.AssigneeID + ">"
		} else {
			assignee = "Unassigned"
		}
	}

	dueText := "no due date"
	overdueMarker := ""
	if t.Due != "" {
		dueText = t.Due
		if due, err := time.ParseInLocation("2006-01-02", t.Due, loc); err == nil && due.Before(today) {
			overdueMarker = "⚠️ "
		}
	}

	pri := ""
	if t.Priority != "" && t.Priority != tasklist.PriorityNone {
		pri = "[" + t.Priority + "] "
	}

	notes := ""
	if t.Notes != "" {
		clean := strings.TrimSpace(whitespacePattern.ReplaceAllString(t.Notes, " "))
		if len(clean) > notesMaxChars {
			notes = " — " + clean[:notesMaxChars] + "..."
		} else if clean != "" {
			notes = " — " + clean
		}
	}

	return "- " + overdueMarker + pri + assignee + " • " + t.Title + " (" + dueText + ")" + notes
}

func startOfDay(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

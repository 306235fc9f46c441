package digest

import (
	"strings"

	"github.com/ikhorlabs/chanbot/internal/persona"
	"github.com/ikhorlabs/chanbot/internal/tasklist"
)

const (
	overdueLabel       = "💢 *OVERDUE ITEMS REQUIRING IMMEDIATE ATTENTION* 💢"
	dueSoonLabel       = "⏰ Items Due Soon (Next 2 Days)"
	topPrioritiesLabel = "📋 Top Priorities for the Day"
)

// ComposeInput carries classified task views plus the resolved user ids
// the composer needs. AssigneeIDs already merges live lookup results over
// the static fallback table; emails absent from it degrade to a bare
// @localpart string.
type ComposeInput struct {
	Display       persona.Display
	Overdue       []tasklist.Task
	DueSoon       []tasklist.DueSoonTask
	Grouped       map[string][]tasklist.Task
	KeyAssignees  []string
	AssigneeIDs   map[string]string
	ClosingUserID string
}

// Compose builds the ordered block sequence for one digest. The result is
// deterministic for identical inputs.
func Compose(in ComposeInput) []Block {
	blocks := []Block{
		Header(in.Display.HeaderText),
		Divider(),
	}

	if len(in.Overdue) > 0 {
		blocks = append(blocks, Section(overdueLabel))
		for _, t := range in.Overdue {
			blocks = append(blocks, Section(taskBullet(in.Display.OverdueBullet, t, "")))
		}
		blocks = append(blocks, Divider())
	}

	if len(in.DueSoon) > 0 {
		blocks = append(blocks, Section(dueSoonLabel))
		for _, t := range in.DueSoon {
			suffix := " (Due today)"
			if t.DaysUntil == 1 {
				suffix = " (Due tomorrow)"
			}
			blocks = append(blocks, Section(taskBullet(in.Display.DueSoonBullet, t.Task, suffix)))
		}
		blocks = append(blocks, Divider())
	}

	if len(in.KeyAssignees) > 0 {
		blocks = append(blocks, Section(topPrioritiesLabel))
		for _, email := range in.KeyAssignees {
			userID := in.AssigneeIDs[email]
			mention := emailMention(email, userID)
			var items []tasklist.Task
			if userID != "" {
				items = in.Grouped[userID]
			}
			if len(items) == 0 {
				blocks = append(blocks, Section(mention+":\nNo items left To Do"))
				continue
			}
			top := items[0]
			blocks = append(blocks, Section(mention+":\n✅ Top Priority: <"+top.Permalink+"|"+top.Title+"> | "+top.Priority))
		}
	}

	if in.ClosingUserID != "" && in.Display.ClosingText != "" {
		blocks = append(blocks, Divider())
		blocks = append(blocks, Section("<@"+in.ClosingUserID+"> "+in.Display.ClosingText))
	}

	return blocks
}

func taskBullet(bullet string, t tasklist.Task, suffix string) string {
	mention := "Unassigned"
	if t.AssigneeID != "" {
		mention = "<@" + t.AssigneeID + ">"
	}
	return "• " + bullet + " " + mention + " <" + t.Permalink + "|" + t.Title + "> | " + t.Priority + suffix
}

func emailMention(email, userID string) string {
	if userID != "" {
		return "<@" + userID + ">"
	}
	local, _, _ := strings.Cut(email, "@")
	return "@" + local
}

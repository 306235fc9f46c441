package digest

import (
	"reflect"
	"strings"
	"testing"

	"github.com/ikhorlabs/chanbot/internal/persona"
	"github.com/ikhorlabs/chanbot/internal/tasklist"
)

func testDisplay() persona.Display {
	return persona.Display{
		HeaderText:    "💚 Daily Update 💚",
		NotifyText:    "Daily Update",
		OverdueBullet: "❤️",
		DueSoonBullet: "🧡",
		ClosingText:   "what is the focus today?",
	}
}

func sampleTask(id, title, assignee, priority string) tasklist.Task {
	return tasklist.Task{
		ID:         id,
		Title:      title,
		AssigneeID: assignee,
		Priority:   priority,
		Permalink:  "https://example.slack.com/lists/T1/F1?record_id=" + id,
	}
}

func TestComposeMinimal(t *testing.T) {
	blocks := Compose(ComposeInput{Display: testDisplay()})

	if len(blocks) != 2 {
		t.Fatalf("blocks = %d, want header + divider only", len(blocks))
	}
	if blocks[0].Type != "header" || blocks[0].Text.Text != "💚 Daily Update 💚" {
		t.Fatalf("first block = %+v", blocks[0])
	}
	if blocks[1].Type != "divider" {
		t.Fatalf("second block = %+v", blocks[1])
	}
}

func TestComposeFullDigest(t *testing.T) {
	in := ComposeInput{
		Display: testDisplay(),
		Overdue: []tasklist.Task{sampleTask("o1", "Late thing", "U1", "P1")},
		DueSoon: []tasklist.DueSoonTask{
			{Task: sampleTask("d1", "Today thing", "U2", "P0"), DaysUntil: 0},
			{Task: sampleTask("d2", "Tomorrow thing", "", "P2"), DaysUntil: 1},
		},
		Grouped: map[string][]tasklist.Task{
			"U1": {sampleTask("g1", "Top item", "U1", "P0")},
		},
		KeyAssignees:  []string{"kytra@ikhor.ai", "ryo@ikhor.ai"},
		AssigneeIDs:   map[string]string{"kytra@ikhor.ai": "U1"},
		ClosingUserID: "U1",
	}
	blocks := Compose(in)

	lines := PreviewLines(blocks)
	joined := strings.Join(lines, "\n")

	for _, want := range []string{
		"💢 *OVERDUE ITEMS REQUIRING IMMEDIATE ATTENTION* 💢",
		"• ❤️ <@U1> <https://example.slack.com/lists/T1/F1?record_id=o1|Late thing> | P1",
		"⏰ Items Due Soon (Next 2 Days)",
		"• 🧡 <@U2> <https://example.slack.com/lists/T1/F1?record_id=d1|Today thing> | P0 (Due today)",
		"• 🧡 Unassigned <https://example.slack.com/lists/T1/F1?record_id=d2|Tomorrow thing> | P2 (Due tomorrow)",
		"📋 Top Priorities for the Day",
		"<@U1>:\n✅ Top Priority: <https://example.slack.com/lists/T1/F1?record_id=g1|Top item> | P0",
		"@ryo:\nNo items left To Do",
		"<@U1> what is the focus today?",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("digest missing %q\n\n%s", want, joined)
		}
	}
}

func TestComposeOmitsEmptySections(t *testing.T) {
	blocks := Compose(ComposeInput{
		Display: testDisplay(),
		DueSoon: []tasklist.DueSoonTask{{Task: sampleTask("d1", "Soon", "U1", "P1"), DaysUntil: 0}},
	})
	joined := strings.Join(PreviewLines(blocks), "\n")

	if strings.Contains(joined, "OVERDUE") {
		t.Fatalf("overdue section rendered with no overdue tasks:\n%s", joined)
	}
	if strings.Contains(joined, "Top Priorities") {
		t.Fatalf("top priorities rendered with no key assignees:\n%s", joined)
	}
	if !strings.Contains(joined, "Items Due Soon") {
		t.Fatalf("due soon section missing:\n%s", joined)
	}

	// no urgency at all still renders header + top priorities
	blocks = Compose(ComposeInput{
		Display:      testDisplay(),
		KeyAssignees: []string{"a@x.com"},
		AssigneeIDs:  map[string]string{"a@x.com": "U1"},
	})
	joined = strings.Join(PreviewLines(blocks), "\n")
	if strings.Contains(joined, "OVERDUE") || strings.Contains(joined, "Items Due Soon") {
		t.Fatalf("empty urgency sections rendered:\n%s", joined)
	}
	if !strings.Contains(joined, "Top Priorities for the Day") {
		t.Fatalf("top priorities missing:\n%s", joined)
	}
}

func TestComposeDeterministic(t *testing.T) {
	in := ComposeInput{
		Display:      testDisplay(),
		Overdue:      []tasklist.Task{sampleTask("o1", "Late", "U1", "P1")},
		KeyAssignees: []string{"a@x.com", "b@x.com"},
		AssigneeIDs:  map[string]string{"a@x.com": "U1", "b@x.com": "U2"},
		Grouped: map[string][]tasklist.Task{
			"U1": {sampleTask("g1", "One", "U1", "P0")},
			"U2": {sampleTask("g2", "Two", "U2", "P1")},
		},
	}
	first := Compose(in)
	second := Compose(in)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical inputs produced different block sequences")
	}
}

func TestComposeClosingNeedsBothParts(t *testing.T) {
	d := testDisplay()
	d.ClosingText = ""
	blocks := Compose(ComposeInput{Display: d, ClosingUserID: "U1"})
	if len(blocks) != 2 {
		t.Fatalf("closing rendered without closing text: %d blocks", len(blocks))
	}

	blocks = Compose(ComposeInput{Display: testDisplay()})
	if len(blocks) != 2 {
		t.Fatalf("closing rendered without a resolved user: %d blocks", len(blocks))
	}
}

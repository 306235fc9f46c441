package digest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ikhorlabs/chanbot/internal/persona"
	"github.com/ikhorlabs/chanbot/internal/slackapi"
	"github.com/ikhorlabs/chanbot/internal/tasklist"
)

type fakeSlack struct {
	items       []slackapi.ListItem
	listErr     error
	posted      []slackapi.PostMessageRequest
	postErr     error
	userByEmail map[string]string
	dmChannel   string
	openedWith  []string
}

func (f *fakeSlack) ListItems(ctx context.Context, listID string, limit int) ([]slackapi.ListItem, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.items, nil
}

func (f *fakeSlack) PostMessage(ctx context.Context, req slackapi.PostMessageRequest) error {
	if f.postErr != nil {
		return f.postErr
	}
	f.posted = append(f.posted, req)
	return nil
}

func (f *fakeSlack) LookupUserByEmail(ctx context.Context, email string) (string, error) {
	if id, ok := f.userByEmail[email]; ok {
		return id, nil
	}
	return "", errors.New("users_not_found")
}

func (f *fakeSlack) OpenConversation(ctx context.Context, userIDs []string) (string, error) {
	f.openedWith = userIDs
	if f.dmChannel == "" {
		return "", errors.New("channel_not_found")
	}
	return f.dmChannel, nil
}

func runnerPersona() *persona.Config {
	return &persona.Config{
		Name:      "research",
		Token:     "xoxb-test",
		ChannelID: "C123",
		ListID:    "F123",
		Timezone:  "Asia/Tokyo",
		Display: persona.Display{
			HeaderText:    "Daily Update",
			NotifyText:    "Daily Update",
			EmptyNotice:   "No items found in the priority list today.",
			OverdueBullet: "❤️",
			DueSoonBullet: "🧡",
		},
		FetchLimit: 200,
		Schema: tasklist.Schema{
			Fields: tasklist.FieldTable{
				"name":     tasklist.SlotTitle,
				"assignee": tasklist.SlotAssignee,
				"due":      tasklist.SlotDueDate,
				"status":   tasklist.SlotStatus,
				"priority": tasklist.SlotPriority,
			},
			StatusByOption:   map[string]string{"OptTodo": "ToDo"},
			PriorityByOption: map[string]string{"OptP1": tasklist.PriorityP1},
			ActiveStatuses:   map[string]bool{"ToDo": true},
			WorkspaceHost:    "example.slack.com",
			TeamID:           "T1",
			ListID:           "F123",
		},
	}
}

func newRunner(cfg *persona.Config, slack *fakeSlack) *Runner {
	return &Runner{
		Persona: cfg,
		Slack:   slack,
		Log:     slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		Now: func() time.Time {
			loc, _ := time.LoadLocation("Asia/Tokyo")
			return time.Date(2026, 9, 1, 8, 0, 0, 0, loc)
		},
	}
}

func listItem(id, title, assignee, due, statusOpt, priorityOpt string) slackapi.ListItem {
	fields := []slackapi.ListItemField{{Key: "name", Text: title}}
	if assignee != "" {
		fields = append(fields, slackapi.ListItemField{Key: "assignee", Users: []string{assignee}})
	}
	for key, v := range map[string]string{"due": due, "status": statusOpt, "priority": priorityOpt} {
		if v == "" {
			continue
		}
		raw, _ := json.Marshal(v)
		fields = append(fields, slackapi.ListItemField{Key: key, Value: raw})
	}
	return slackapi.ListItem{ID: id, Fields: fields}
}

func TestRunEmptyListPostsNotice(t *testing.T) {
	slack := &fakeSlack{}
	r := newRunner(runnerPersona(), slack)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(slack.posted) != 1 {
		t.Fatalf("posted %d messages, want 1", len(slack.posted))
	}
	if got := slack.posted[0].Text; got != "No items found in the priority list today." {
		t.Fatalf("notice = %q", got)
	}
	if slack.posted[0].Blocks != nil {
		t.Fatal("empty-list notice should carry no blocks")
	}
}

func TestRunFetchErrorDegradesToNotice(t *testing.T) {
	slack := &fakeSlack{listErr: errors.New("rate_limited")}
	r := newRunner(runnerPersona(), slack)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(slack.posted) != 1 || !strings.Contains(slack.posted[0].Text, "No items found") {
		t.Fatalf("posted = %+v", slack.posted)
	}
}

func TestRunPostsDigestToChannel(t *testing.T) {
	slack := &fakeSlack{items: []slackapi.ListItem{
		listItem("r1", "Overdue thing", "U1", "2026-08-30", "OptTodo", "OptP1"),
		listItem("r2", "Today thing", "U2", "2026-09-01", "OptTodo", "OptP1"),
	}}
	r := newRunner(runnerPersona(), slack)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(slack.posted) != 1 {
		t.Fatalf("posted %d messages, want 1", len(slack.posted))
	}
	msg := slack.posted[0]
	if msg.Channel != "C123" {
		t.Fatalf("channel = %q", msg.Channel)
	}
	if msg.Text != "Daily Update" {
		t.Fatalf("notify text = %q", msg.Text)
	}
	blocks, ok := msg.Blocks.([]Block)
	if !ok {
		t.Fatalf("blocks type = %T", msg.Blocks)
	}
	joined := strings.Join(PreviewLines(blocks), "\n")
	if !strings.Contains(joined, "Overdue thing") || !strings.Contains(joined, "Today thing") {
		t.Fatalf("digest missing tasks:\n%s", joined)
	}
}

func TestRunDeliversToGroupDM(t *testing.T) {
	cfg := runnerPersona()
	cfg.DMRecipients = []string{"jackson@ikhor.ai", "todd@ikhor.ai", "jaxn@ikhor.ai"}
	cfg.EmailToUserID = map[string]string{
		"jackson@ikhor.ai": "U10",
		"todd@ikhor.ai":    "U11",
		"jaxn@ikhor.ai":    "U10", // alias, must be deduplicated
	}
	slack := &fakeSlack{
		items:     []slackapi.ListItem{listItem("r1", "Thing", "U1", "", "OptTodo", "OptP1")},
		dmChannel: "D777",
	}
	r := newRunner(cfg, slack)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(slack.openedWith) != 2 {
		t.Fatalf("opened DM with %v, want two unique ids", slack.openedWith)
	}
	if slack.posted[len(slack.posted)-1].Channel != "D777" {
		t.Fatalf("digest went to %q, want the group DM", slack.posted[len(slack.posted)-1].Channel)
	}
}

func TestRunDMResolutionFailureNotifiesChannel(t *testing.T) {
	cfg := runnerPersona()
	cfg.DMRecipients = []string{"ghost@ikhor.ai"}
	cfg.EmailToUserID = map[string]string{}
	slack := &fakeSlack{
		items: []slackapi.ListItem{listItem("r1", "Thing", "U1", "", "OptTodo", "OptP1")},
	}
	r := newRunner(cfg, slack)

	err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error when no DM recipient resolves")
	}
	last := slack.posted[len(slack.posted)-1]
	if last.Channel != "C123" || !strings.Contains(last.Text, "❌ Daily update failed") {
		t.Fatalf("failure notice = %+v", last)
	}
}

func TestRunLiveLookupOverridesFallback(t *testing.T) {
	cfg := runnerPersona()
	cfg.KeyAssignees = []string{"kytra@ikhor.ai"}
	cfg.EmailToUserID = map[string]string{"kytra@ikhor.ai": "USTALE"}
	slack := &fakeSlack{
		items:       []slackapi.ListItem{listItem("r1", "Thing", "ULIVE", "", "OptTodo", "OptP1")},
		userByEmail: map[string]string{"kytra@ikhor.ai": "ULIVE"},
	}
	r := newRunner(cfg, slack)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	blocks := slack.posted[0].Blocks.([]Block)
	joined := strings.Join(PreviewLines(blocks), "\n")
	if !strings.Contains(joined, "<@ULIVE>:\n✅ Top Priority:") {
		t.Fatalf("live lookup result not used:\n%s", joined)
	}
}

func TestRunRefusesWithoutToken(t *testing.T) {
	cfg := runnerPersona()
	cfg.Token = ""
	r := newRunner(cfg, &fakeSlack{})
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("expected an error for a persona without a token")
	}
}

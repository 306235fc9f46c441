package digest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ikhorlabs/chanbot/internal/persona"
	"github.com/ikhorlabs/chanbot/internal/slackapi"
	"github.com/ikhorlabs/chanbot/internal/tasklist"
)

// SlackService is the slice of the Slack client a digest run needs.
type SlackService interface {
	ListItems(ctx context.Context, listID string, limit int) ([]slackapi.ListItem, error)
	PostMessage(ctx context.Context, req slackapi.PostMessageRequest) error
	LookupUserByEmail(ctx context.Context, email string) (string, error)
	OpenConversation(ctx context.Context, userIDs []string) (string, error)
}

// Runner executes one digest run for one persona: fetch, normalize,
// classify, compose, deliver.
type Runner struct {
	Persona *persona.Config
	Slack   SlackService
	Log     *slog.Logger
	Now     func() time.Time
}

// Run performs a single digest run. Fetch failures degrade to an empty
// list; delivery failures trigger one best-effort error notification to
// the persona channel and are returned to the caller.
func (r *Runner) Run(ctx context.Context) error {
	cfg := r.Persona
	if !cfg.Enabled() || cfg.ChannelID == "" {
		return fmt.Errorf("persona %s: missing bot token or channel", cfg.Name)
	}
	log := r.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("persona", cfg.Name, "run_id", "run_"+uuid.NewString())

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	nowFn := r.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	// Taken once so urgency classification cannot straddle midnight.
	now := nowFn()

	log.Info("digest_start", "list_id", cfg.ListID, "timezone", cfg.Timezone)

	items, err := r.Slack.ListItems(ctx, cfg.ListID, cfg.FetchLimit)
	if err != nil {
		log.Warn("digest_list_fetch_error", "error", err.Error())
		items = nil
	}
	if len(items) == 0 {
		log.Info("digest_no_items")
		notice := cfg.Display.EmptyNotice
		if notice == "" {
			notice = "No items found in the list today."
		}
		if err := r.Slack.PostMessage(ctx, slackapi.PostMessageRequest{Channel: cfg.ChannelID, Text: notice}); err != nil {
			return r.notifyFailure(ctx, log, err)
		}
		return nil
	}

	tasks := tasklist.NewNormalizer(cfg.Schema, log).NormalizeAll(items)
	eligible := tasklist.FilterEligible(tasks, cfg.Schema.ActiveStatuses)
	grouped := tasklist.GroupByAssignee(eligible)
	urgency := tasklist.ClassifyUrgency(eligible, now, loc, cfg.Schema.ActiveStatuses)

	assigneeIDs := r.resolveEmails(ctx, log, cfg.KeyAssignees)
	closingID := ""
	if cfg.Display.ClosingEmail != "" {
		closingID = r.resolveEmails(ctx, log, []string{cfg.Display.ClosingEmail})[cfg.Display.ClosingEmail]
	}

	blocks := Compose(ComposeInput{
		Display:       cfg.Display,
		Overdue:       urgency.Overdue,
		DueSoon:       urgency.DueSoon,
		Grouped:       grouped,
		KeyAssignees:  cfg.KeyAssignees,
		AssigneeIDs:   assigneeIDs,
		ClosingUserID: closingID,
	})

	log.Info("digest_preview",
		"channel", cfg.ChannelID,
		"blocks", len(blocks),
		"preview", strings.Join(PreviewLines(blocks), "\n"),
	)

	channel, err := r.deliveryChannel(ctx, log)
	if err != nil {
		return r.notifyFailure(ctx, log, err)
	}
	err = r.Slack.PostMessage(ctx, slackapi.PostMessageRequest{
		Channel: channel,
		Text:    cfg.Display.NotifyText,
		Blocks:  blocks,
	})
	if err != nil {
		return r.notifyFailure(ctx, log, err)
	}
	log.Info("digest_posted", "channel", channel, "overdue", len(urgency.Overdue), "due_soon", len(urgency.DueSoon))
	return nil
}

// deliveryChannel picks the digest destination: a group DM with the
// configured recipients when any are set, otherwise the persona channel.
func (r *Runner) deliveryChannel(ctx context.Context, log *slog.Logger) (string, error) {
	cfg := r.Persona
	if len(cfg.DMRecipients) == 0 {
		return cfg.ChannelID, nil
	}
	resolved := r.resolveEmails(ctx, log, cfg.DMRecipients)
	seen := make(map[string]bool, len(resolved))
	ids := make([]string, 0, len(cfg.DMRecipients))
	for _, email := range cfg.DMRecipients {
		id := resolved[email]
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("persona %s: no DM recipients could be resolved", cfg.Name)
	}
	channel, err := r.Slack.OpenConversation(ctx, ids)
	if err != nil {
		return "", fmt.Errorf("open group dm: %w", err)
	}
	log.Info("digest_group_dm", "recipients", len(ids), "channel", channel)
	return channel, nil
}

// resolveEmails merges live lookups over the static fallback table.
// Lookup failures are non-fatal; the fallback entry (or nothing) stands.
func (r *Runner) resolveEmails(ctx context.Context, log *slog.Logger, emails []string) map[string]string {
	out := make(map[string]string, len(emails))
	for _, email := range emails {
		if id := r.Persona.EmailToUserID[email]; id != "" {
			out[email] = id
		}
		id, err := r.Slack.LookupUserByEmail(ctx, email)
		if err != nil {
			log.Debug("digest_user_lookup_miss", "email", email, "error", err.Error())
			continue
		}
		out[email] = id
	}
	return out
}

func (r *Runner) notifyFailure(ctx context.Context, log *slog.Logger, cause error) error {
	log.Error("digest_failed", "error", cause.Error())
	notice := fmt.Sprintf("❌ Daily update failed: %v", cause)
	if err := r.Slack.PostMessage(ctx, slackapi.PostMessageRequest{Channel: r.Persona.ChannelID, Text: notice}); err != nil {
		log.Warn("digest_failure_notify_error", "error", err.Error())
	}
	return cause
}

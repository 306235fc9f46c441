package events

import (
	"context"
	"regexp"
	"strings"

	"github.com/ikhorlabs/chanbot/internal/llm"
	"github.com/ikhorlabs/chanbot/internal/slackapi"
)

var (
	userMentionPattern = regexp.MustCompile(`<@[^>]+>`)
	mentionRefPattern  = regexp.MustCompile(`<@([^>|]+)(?:\|[^>]*)?>`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
	helpPattern        = regexp.MustCompile(`(?i)\bhelp\b`)
)

const (
	threadSnippetLimit    = 8
	threadSnippetMaxChars = 1200
)

const statusDefinitions = `Task Status Definitions:
- ToDo: Task has not been started yet
- In Progress: Task is currently being worked on
- In Review: Task has been completed by the assignee and is awaiting review/approval from the requester
`

// StripMentions removes user-mention markup and collapses whitespace.
func StripMentions(text string) string {
	text = userMentionPattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func (h *Handler) handleMention(ctx context.Context, event mentionEvent) {
	cfg := h.Persona
	log := h.logger().With("persona", cfg.Name, "channel", event.Channel)

	userText := StripMentions(event.Text)
	threadTS := event.ThreadTS
	if threadTS == "" {
		threadTS = event.TS
	}

	if helpPattern.MatchString(userText) {
		if err := h.reply(ctx, event.Channel, threadTS, cfg.HelpText); err != nil {
			log.Warn("mention_help_reply_error", "error", err.Error())
		}
		return
	}

	system := cfg.SystemPrompt
	if len(cfg.ContextStatuses) > 0 {
		userName := cfg.UserNames[event.User]
		if userName == "" && event.User != "" {
			userName = "<@" + event.User + ">"
		}
		system += "\n\nYou are responding to " + userName + " who mentioned you in Slack."
		system += "\n\n" + statusDefinitions
		if tasksContext := h.tasksContext(ctx, log); tasksContext != "" {
			system += "\nCurrent task status (organized by stage):\n" + tasksContext
		}
	}
	if threadContext := h.threadSnippet(ctx, event.Channel, threadTS); threadContext != "" {
		system += "\n\nThread context (summarized, may be incomplete):\n" + threadContext
	}

	if userText == "" {
		userText = cfg.IntroPrompt
	}
	res, err := h.LLM.Chat(ctx, llm.Request{
		Model:    cfg.Model,
		System:   system,
		Messages: []llm.Message{{Role: "user", Content: userText}},
	})
	if err != nil {
		log.Warn("mention_llm_error", "error", err.Error())
		if replyErr := h.reply(ctx, event.Channel, threadTS, cfg.ApologyText); replyErr != nil {
			log.Warn("mention_apology_reply_error", "error", replyErr.Error())
		}
		return
	}
	if err := h.reply(ctx, event.Channel, threadTS, res.Text); err != nil {
		log.Warn("mention_reply_error", "error", err.Error())
		return
	}
	log.Info("mention_replied")
}

func (h *Handler) reply(ctx context.Context, channel, threadTS, text string) error {
	return h.Slack.PostMessage(ctx, slackapi.PostMessageRequest{
		Channel:  channel,
		Text:     text,
		ThreadTS: threadTS,
	})
}

// threadSnippet gathers a bounded excerpt of the thread: messages are
// accumulated newest-first until the character budget is hit, then
// rendered oldest-first for readability. Failures yield an empty snippet.
func (h *Handler) threadSnippet(ctx context.Context, channel, ts string) string {
	msgs, err := h.Slack.ThreadReplies(ctx, channel, ts, threadSnippetLimit)
	if err != nil {
		return ""
	}
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		text := mentionRefPattern.ReplaceAllString(m.Text, "@$1")
		if text != "" {
			parts = append(parts, text)
		}
	}
	snippet := ""
	for i := len(parts) - 1; i >= 0; i-- {
		if len(snippet)+len(parts[i])+2 > threadSnippetMaxChars {
			break
		}
		snippet = parts[i] + "\n" + snippet
	}
	return strings.TrimSpace(snippet)
}

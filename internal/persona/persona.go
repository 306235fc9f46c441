// Package persona holds the per-bot configuration: credentials, schedule
// context, field mapping tables, and display copy. Two personas share one
// pipeline; everything that differs between them lives here.
package persona

import (
	"fmt"
	"strings"
	"time"

	"github.com/ikhorlabs/chanbot/internal/tasklist"
	"github.com/spf13/viper"
)

// Display is the persona-specific digest copy.
type Display struct {
	HeaderText    string
	NotifyText    string // plain-text fallback shown in notifications
	EmptyNotice   string // posted when the list has no items
	OverdueBullet string
	DueSoonBullet string

	// Optional closing prompt: a mention of ClosingEmail followed by
	// ClosingText. Skipped when ClosingEmail resolves to nothing.
	ClosingEmail string
	ClosingText  string
}

// Config is immutable after load and safe for concurrent reads.
type Config struct {
	Name          string
	Token         string
	ChannelID     string
	ListID        string
	Timezone      string
	SigningSecret string

	KeyAssignees  []string          // emails, digest top-priorities order
	EmailToUserID map[string]string // static fallback, overridden by live lookup
	DMRecipients  []string          // emails; when set the digest goes to a group DM
	UserNames     map[string]string // user id -> short display name for LLM context

	Model        string
	SystemPrompt string
	HelpText     string
	ApologyText  string
	IntroPrompt  string // user turn substituted when a mention has no text

	FetchLimit      int
	ContextStatuses []string // statuses surfaced in LLM task context, in order

	Display Display
	Schema  tasklist.Schema
}

// Enabled reports whether the persona has enough configuration to run.
// Personas without a token are skipped entirely; the rest of the process
// keeps operating.
func (c *Config) Enabled() bool {
	return c != nil && c.Token != ""
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("persona %s: invalid timezone %q: %w", c.Name, c.Timezone, err)
	}
	return loc, nil
}

// Load returns the named built-in persona from viper configuration.
func Load(v *viper.Viper, name string) (*Config, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "research":
		return Research(v), nil
	case "sales":
		return Sales(v), nil
	default:
		return nil, fmt.Errorf("unknown persona %q (expected research or sales)", name)
	}
}

// Shared fallback map of email -> Slack user id. Live lookup results
// override these at run time.
var defaultEmailToUserID = map[string]string{
	"kytra@ikhor.ai":   "U06K8F0F1RC",
	"ryo@ikhor.ai":     "U09BTLXG89G",
	"joao@ikhor.ai":    "U06L088EW7K",
	"kijai@ikhor.ai":   "U0798RS2ESX",
	"jackson@ikhor.ai": "U06KJLR4GBF",
	"todd@ikhor.ai":    "U079Z6D4YFJ",
	"kush@ikhor.ai":    "U07584FHQMN",
	"jaxn@ikhor.ai":    "U06KJLR4GBF",
}

var defaultUserNames = map[string]string{
	"U06L088EW7K": "Joao",
	"U06K8F0F1RC": "Kytra",
	"U09BTLXG89G": "Ryo",
	"U06KJLR4GBF": "Jackson",
	"U06LABYK33J": "Khai",
	"U0798RS2ESX": "Kijai",
	"U079Z6D4YFJ": "Todd",
	"U07584FHQMN": "Kush",
}

const defaultResearchPrompt = `You are Research Chan, the R&D team's precise, upbeat companion. When asked about tasks, priorities, or schedules:

1. **Organize by due dates** - Group tasks by their due dates (e.g., "Due Monday, 2025-09-02")
2. **Show assignee names and task titles** clearly (e.g., "Kytra: Magic Qwen Workflow Improvements")
3. **Include brief task details** when available from the Details field
4. **Use bullet points** for clarity and readability
5. **Keep responses structured** but add a touch of personality at the end (1-2 sentences max)

Format example:
* **Due [Day], [Date]:**
  * [Name]: [Task Title]. [Brief details if available]

When there are no specific dates asked about, show the next 5-7 days of priorities.
Focus on facts and actionable information. Be helpful but concise.`

const defaultSalesPrompt = "You are Sales Chan, a focused, friendly sales teammate. Be concise and actionable (3-6 lines), prioritize pipeline movement, qualification, and next steps. Use Slack-friendly bullets and keep tone positive and professional."

const apologyText = "⚠️ I hit an error talking to the LLM. Try again later."

// Research is the R&D list bot.
func Research(v *viper.Viper) *Config {
	return &Config{
		Name:          "research",
		Token:         v.GetString("research.bot_token"),
		ChannelID:     v.GetString("research.channel_id"),
		ListID:        v.GetString("research.list_id"),
		Timezone:      stringOr(v, "research.timezone", stringOr(v, "timezone", "Asia/Tokyo")),
		SigningSecret: v.GetString("research.signing_secret"),
		KeyAssignees: stringsOr(v, "research.key_assignees",
			[]string{"kytra@ikhor.ai", "ryo@ikhor.ai", "joao@ikhor.ai"}),
		EmailToUserID: defaultEmailToUserID,
		UserNames:     defaultUserNames,
		Model:         stringOr(v, "research.model", stringOr(v, "llm.model", "gemini-1.5-pro")),
		SystemPrompt:  stringOr(v, "research.system_prompt", defaultResearchPrompt),
		HelpText:      "Hi! I'm Research Chan :green_heart::test_tube::sparkles:: I provide daily priority updates for the R&D team.",
		ApologyText:   apologyText,
		IntroPrompt:   "Please introduce yourself and how you can help.",
		FetchLimit:    intOr(v, "research.fetch_limit", 200),
		ContextStatuses: []string{
			"ToDo", "In Progress", "In Review",
		},
		Display: Display{
			HeaderText:    "💚🧪✨ Research Chan - Daily Update ✨🧪💚",
			NotifyText:    "Research Chan - Daily Update",
			EmptyNotice:   "No items found in the priority list today.",
			OverdueBullet: "❤️",
			DueSoonBullet: "🧡",
			ClosingEmail:  "kytra@ikhor.ai",
			ClosingText:   "-chan ~ what is the big focus for today? 😘",
		},
		Schema: tasklist.Schema{
			Fields: tasklist.FieldTable{
				"todo_assignee":  tasklist.SlotAssignee,
				"name":           tasklist.SlotTitle,
				"title":          tasklist.SlotTitle,
				"todo_due_date":  tasklist.SlotDueDate,
				"todo_completed": tasklist.SlotCompleted,
				"Col093T8A25LG":  tasklist.SlotStatus,
				"Col08V4T02P5Y":  tasklist.SlotPriority,
				"Col08V5C24K1S":  tasklist.SlotNotes,
			},
			StatusByOption: map[string]string{
				"Opt2AUH34OG": "ToDo",
				"Opt62NHHN5C": "In Review",
				"OptHSJVP60E": "In Progress",
				"OptHX1KN4IP": "Deprecated",
				"OptZHYHCA4A": "Backlog",
				"Opt38B8RWRR": "Complete",
			},
			PriorityByOption: map[string]string{
				"Opt0183CXDH": tasklist.PriorityP0,
				"Opt4GBWBKZB": tasklist.PriorityP1,
				"OptGESIX7LE": tasklist.PriorityP2,
				"Opt24AKKH4V": tasklist.PriorityP3,
			},
			ActiveStatuses: map[string]bool{
				"ToDo":        true,
				"In Progress": true,
			},
			WorkspaceHost: stringOr(v, "slack.workspace_host", "ikhorlabs.slack.com"),
			TeamID:        stringOr(v, "slack.team_id", "T06K7221F6C"),
			ListID:        v.GetString("research.list_id"),
		},
	}
}

// Sales is the pipeline list bot. Its digest is delivered to a group DM
// and it carries no key-assignee section by default.
func Sales(v *viper.Viper) *Config {
	return &Config{
		Name:          "sales",
		Token:         v.GetString("sales.bot_token"),
		ChannelID:     v.GetString("sales.channel_id"),
		ListID:        v.GetString("sales.list_id"),
		Timezone:      stringOr(v, "sales.timezone", stringOr(v, "timezone", "Asia/Tokyo")),
		SigningSecret: v.GetString("sales.signing_secret"),
		KeyAssignees:  stringsOr(v, "sales.key_assignees", nil),
		EmailToUserID: defaultEmailToUserID,
		DMRecipients: stringsOr(v, "sales.dm_recipients",
			[]string{"jackson@ikhor.ai", "todd@ikhor.ai", "hilary@ikhor.ai", "coco@ikhor.ai"}),
		UserNames:    defaultUserNames,
		Model:        stringOr(v, "sales.model", stringOr(v, "llm.model", "gemini-1.5-pro")),
		SystemPrompt: stringOr(v, "sales.system_prompt", defaultSalesPrompt),
		HelpText:     "Hi! I'm Sales Chan :large_blue_circle::briefcase:: I post sales priorities and respond to mentions.",
		ApologyText:  apologyText,
		IntroPrompt:  "Please introduce yourself and how you can help with sales tasks.",
		FetchLimit:   intOr(v, "sales.fetch_limit", 400),
		Display: Display{
			HeaderText:    "📞💓♠️ Sales Chan - Daily Update ♠️💓📞",
			NotifyText:    "Sales Chan - Daily Update",
			EmptyNotice:   "No items found in the sales list today.",
			OverdueBullet: "❤️",
			DueSoonBullet: "🧡",
		},
		Schema: tasklist.Schema{
			Fields: tasklist.FieldTable{
				"name":          tasklist.SlotTitle,
				"Col07R4NKTN3B": tasklist.SlotAssignee,
				"Col07QUHA36DS": tasklist.SlotDueDate,
				"people":        tasklist.SlotStatus,
				"date":          tasklist.SlotPriority,
			},
			StatusByOption: map[string]string{
				"OptTR35W8NA": "Done",
				"Opt7MNHB19N": "Not started",
				"OptXBPNOYKC": "In progress",
				"OptZHAUQFJX": "Delayed",
				"OptFRBZND04": "Pending Response",
				"OptX4J6I8OQ": "Re-Visit (Sep+)",
			},
			PriorityByOption: map[string]string{
				"OptLB9I51KK": tasklist.PriorityP0,
				"OptYBKVVSJL": tasklist.PriorityP1,
				"OptKUQNIOIF": tasklist.PriorityP2,
				"OptLYP9IY01": tasklist.PriorityP3,
			},
			ActiveStatuses: map[string]bool{
				"Not started": true,
				"In progress": true,
			},
			WorkspaceHost: stringOr(v, "slack.workspace_host", "ikhorlabs.slack.com"),
			TeamID:        stringOr(v, "slack.team_id", "T06K7221F6C"),
			ListID:        v.GetString("sales.list_id"),
		},
	}
}

func stringOr(v *viper.Viper, key, fallback string) string {
	if s := strings.TrimSpace(v.GetString(key)); s != "" {
		return s
	}
	return fallback
}

func intOr(v *viper.Viper, key string, fallback int) int {
	if n := v.GetInt(key); n > 0 {
		return n
	}
	return fallback
}

func stringsOr(v *viper.Viper, key string, fallback []string) []string {
	raw := v.GetString(key)
	if strings.TrimSpace(raw) == "" {
		if items := v.GetStringSlice(key); len(items) > 0 {
			raw = strings.Join(items, ",")
		}
	}
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

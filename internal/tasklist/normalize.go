package tasklist

import (
	"log/slog"
	"regexp"

	"github.com/ikhorlabs/chanbot/internal/slackapi"
)

var (
	titleTagPattern = regexp.MustCompile(`\b[Pp]([0-4])\b`)
	titleTagPrefix  = regexp.MustCompile(`^\s*[Pp][0-4]\s*:?\s*`)
)

// Normalizer maps raw list records to Tasks using a persona schema.
// Unmapped option ids are logged once per id per Normalizer as warnings and
// degrade to StatusUnknown / PriorityNone rather than failing the record.
type Normalizer struct {
	Schema Schema
	Log    *slog.Logger

	warned map[string]bool
}

func NewNormalizer(schema Schema, log *slog.Logger) *Normalizer {
	if log == nil {
		log = slog.Default()
	}
	return &Normalizer{
		Schema: schema,
		Log:    log,
		warned: make(map[string]bool),
	}
}

// Normalize extracts a Task from one record in a single pass over its
// fields. When the same key appears twice the last occurrence wins.
func (n *Normalizer) Normalize(item slackapi.ListItem) Task {
	task := Task{
		ID:       item.ID,
		Title:    "Untitled",
		Status:   StatusUnknown,
		Priority: PriorityNone,
	}

	for _, field := range item.Fields {
		slot, ok := n.Schema.Fields[field.Key]
		if !ok {
			continue
		}
		switch slot {
		case SlotAssignee:
			if len(field.Users) > 0 {
				task.AssigneeID = field.Users[0]
			}
		case SlotTitle:
			if field.Text != "" {
				task.Title = field.Text
			}
		case SlotDueDate:
			if v := field.ValueString(); v != "" {
				task.Due = v
			}
		case SlotStatus:
			if v := field.ValueString(); v != "" {
				mapped, known := n.Schema.StatusByOption[v]
				if known {
					task.Status = mapped
				} else {
					task.Status = StatusUnknown
					n.warnOnce("status", v, item.ID)
				}
			}
		case SlotPriority:
			if v := field.ValueString(); v != "" {
				mapped, known := n.Schema.PriorityByOption[v]
				if known {
					task.Priority = mapped
				} else {
					n.warnOnce("priority", v, item.ID)
				}
			}
		case SlotNotes:
			if field.Text != "" {
				task.Notes = field.Text
			}
		case SlotCompleted:
			task.Completed = field.ValueBool()
		}
	}

	// A Pn token in the title is the source of truth for priority; the
	// leading tag is stripped once and the cleaned title kept from then on.
	if m := titleTagPattern.FindStringSubmatch(task.Title); m != nil {
		tagged := "P" + m[1]
		if task.Priority != PriorityNone && task.Priority != tagged {
			n.Log.Warn("task_priority_tag_mismatch",
				"record_id", item.ID,
				"title_priority", tagged,
				"field_priority", task.Priority,
			)
		}
		task.Priority = tagged
		task.Title = titleTagPrefix.ReplaceAllString(task.Title, "")
	}

	task.Permalink = n.Schema.Permalink(item.ID)
	return task
}

// NormalizeAll maps every record, preserving input order.
func (n *Normalizer) NormalizeAll(items []slackapi.ListItem) []Task {
	out := make([]Task, 0, len(items))
	for _, item := range items {
		out = append(out, n.Normalize(item))
	}
	return out
}

func (n *Normalizer) warnOnce(kind, optionID, recordID string) {
	key := kind + ":" + optionID
	if n.warned[key] {
		return
	}
	n.warned[key] = true
	n.Log.Warn("task_unmapped_option",
		"kind", kind,
		"option_id", optionID,
		"record_id", recordID,
	)
}

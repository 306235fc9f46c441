// Package tasklist converts raw Slack list records into a normalized task
// model and classifies tasks for digest building.
package tasklist

// Priority labels. Ordering for sorting and tie-breaks is
// P0 < P1 < P2 < P3 < P4 < None.
const (
	PriorityP0   = "P0"
	PriorityP1   = "P1"
	PriorityP2   = "P2"
	PriorityP3   = "P3"
	PriorityP4   = "P4"
	PriorityNone = "None"
)

// StatusUnknown is the status assigned to records whose status option id
// has no mapping in the persona schema.
const StatusUnknown = "Unknown"

var priorityRank = map[string]int{
	PriorityP0: 0,
	PriorityP1: 1,
	PriorityP2: 2,
	PriorityP3: 3,
	PriorityP4: 4,
}

// PriorityRank returns the sort rank of a priority label. Unranked labels
// (None, or anything unexpected) sort last.
func PriorityRank(p string) int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return 99
}

// Task is the normalized, persona-agnostic representation of one record.
type Task struct {
	ID         string
	Title      string
	AssigneeID string
	Due        string // calendar date, YYYY-MM-DD; empty when unset
	Status     string
	Priority   string
	Notes      string
	Permalink  string
	Completed  bool
}

// FieldSlot is the closed set of semantic meanings a record field can map to.
type FieldSlot int

const (
	SlotAssignee FieldSlot = iota
	SlotTitle
	SlotDueDate
	SlotStatus
	SlotPriority
	SlotNotes
	SlotCompleted
)

// FieldTable maps persona-specific field keys to semantic slots.
type FieldTable map[string]FieldSlot

// Schema is the persona-specific knowledge the normalizer needs: which
// field key means what, and how raw option ids translate to labels.
type Schema struct {
	Fields           FieldTable
	StatusByOption   map[string]string
	PriorityByOption map[string]string
	ActiveStatuses   map[string]bool

	// Permalink construction inputs.
	WorkspaceHost string
	TeamID        string
	ListID        string
}

// Permalink builds the deterministic record URL for the schema's list.
func (s Schema) Permalink(recordID string) string {
	return "https://" + s.WorkspaceHost + "/lists/" + s.TeamID + "/" + s.ListID + "?record_id=" + recordID
}

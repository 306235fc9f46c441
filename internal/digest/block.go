// Package digest assembles the daily update message from classified tasks.
// A digest is an ordered, append-only sequence of display blocks that
// marshals directly to Slack Block Kit JSON.
package digest

import "fmt"

type BlockText struct {
	Type  string `json:"type"` // plain_text or mrkdwn
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type Block struct {
	Type string     `json:"type"` // header, divider, section
	Text *BlockText `json:"text,omitempty"`
}

func Header(text string) Block {
	return Block{Type: "header", Text: &BlockText{Type: "plain_text", Text: text, Emoji: true}}
}

func Divider() Block {
	return Block{Type: "divider"}
}

func Section(markdown string) Block {
	return Block{Type: "section", Text: &BlockText{Type: "mrkdwn", Text: markdown}}
}

// PreviewLines renders the human-readable preview logged before a digest
// is posted. The preview must match what is actually sent.
func PreviewLines(blocks []Block) []string {
	lines := make([]string, 0, len(blocks))
	for i, b := range blocks {
		switch b.Type {
		case "header":
			lines = append(lines, fmt.Sprintf("[%d] Header: %s", i, b.Text.Text))
		case "section":
			lines = append(lines, fmt.Sprintf("[%d] Section: %s", i, b.Text.Text))
		case "divider":
			lines = append(lines, fmt.Sprintf("[%d] --- Divider ---", i))
		}
	}
	return lines
}

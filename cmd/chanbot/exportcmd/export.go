// Package exportcmd dumps a persona's list to CSV or JSON for offline
// analysis. Normalized columns sit next to the raw option ids so exports
// survive future mapping changes.
package exportcmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ikhorlabs/chanbot/internal/configutil"
	"github.com/ikhorlabs/chanbot/internal/persona"
	"github.com/ikhorlabs/chanbot/internal/slackapi"
	"github.com/ikhorlabs/chanbot/internal/tasklist"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type record struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	AssigneeID     string `json:"assignee_id,omitempty"`
	Due            string `json:"due,omitempty"`
	Status         string `json:"status"`
	StatusOption   string `json:"status_option,omitempty"`
	Priority       string `json:"priority"`
	PriorityOption string `json:"priority_option,omitempty"`
	Completed      bool   `json:"completed"`
	Notes          string `json:"notes,omitempty"`
	Permalink      string `json:"permalink"`
}

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a persona's task list to CSV or JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(configutil.FlagOrViperString(cmd, "persona", "export.persona"))
			if name == "" {
				return fmt.Errorf("missing persona (--persona research|sales)")
			}
			format := strings.ToLower(strings.TrimSpace(configutil.FlagOrViperString(cmd, "format", "export.format")))
			if format == "" {
				format = "csv"
			}
			if format != "csv" && format != "json" {
				return fmt.Errorf("unknown format %q (expected csv or json)", format)
			}
			outPath := strings.TrimSpace(configutil.FlagOrViperString(cmd, "out", "export.out"))

			cfg, err := persona.Load(viper.GetViper(), name)
			if err != nil {
				return err
			}
			if !cfg.Enabled() {
				return fmt.Errorf("persona %s has no bot token configured", cfg.Name)
			}

			client := slackapi.New(nil, viper.GetString("slack.api_base_url"), cfg.Token)
			items, err := client.ListItems(cmd.Context(), cfg.ListID, cfg.FetchLimit)
			if err != nil {
				return fmt.Errorf("fetch list items: %w", err)
			}

			log := slog.Default()
			records := buildRecords(cfg, items, log)

			out := io.Writer(os.Stdout)
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			if format == "json" {
				err = writeJSON(out, records)
			} else {
				err = writeCSV(out, records)
			}
			if err != nil {
				return err
			}
			log.Info("export_done", "persona", cfg.Name, "records", len(records), "format", format, "out", outWhere(outPath))
			return nil
		},
	}

	cmd.Flags().String("persona", "", "Persona to export: research or sales.")
	cmd.Flags().String("format", "csv", "Output format: csv or json.")
	cmd.Flags().String("out", "", "Output file path; stdout when empty.")
	return cmd
}

func buildRecords(cfg *persona.Config, items []slackapi.ListItem, log *slog.Logger) []record {
	tasks := tasklist.NewNormalizer(cfg.Schema, log).NormalizeAll(items)
	byID := make(map[string]tasklist.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	records := make([]record, 0, len(items))
	for _, item := range items {
		t := byID[item.ID]
		rec := record{
			ID:         item.ID,
			Title:      t.Title,
			AssigneeID: t.AssigneeID,
			Due:        t.Due,
			Status:     t.Status,
			Priority:   t.Priority,
			Completed:  t.Completed,
			Notes:      t.Notes,
			Permalink:  t.Permalink,
		}
		for _, f := range item.Fields {
			slot, ok := cfg.Schema.Fields[f.Key]
			if !ok {
				continue
			}
			switch slot {
			case tasklist.SlotStatus:
				rec.StatusOption = f.ValueString()
			case tasklist.SlotPriority:
				rec.PriorityOption = f.ValueString()
			}
		}
		records = append(records, rec)
	}
	return records
}

func writeJSON(w io.Writer, records []record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func writeCSV(w io.Writer, records []record) error {
	cw := csv.NewWriter(w)
	header := []string{
		"record_id", "title", "assignee_id", "due",
		"status", "status_option", "priority", "priority_option",
		"completed", "notes", "permalink",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.ID, r.Title, r.AssigneeID, r.Due,
			r.Status, r.StatusOption, r.Priority, r.PriorityOption,
			strconv.FormatBool(r.Completed), r.Notes, r.Permalink,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func outWhere(path string) string {
	if path == "" {
		return "stdout"
	}
	return path
}

package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/psp/internal/model"
	"github.com/Tiliavir/psp/internal/storage"
)

var synopsisFormat string

var synopsisCmd = &cobra.Command{
	Use:   "synopsis FILE...",
	Short: "Summarise archives",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSynopsis,
}

func init() {
	synopsisCmd.Flags().StringVar(&synopsisFormat, "format", "md", "Output format: md, csv, json")
}

// synopsis aggregates the panels of one archive.
type synopsis struct {
	File     string     `json:"file"`
	Panels   int        `json:"panels"`
	Entries  int        `json:"entries"`
	Insights int        `json:"insights"`
	Text     int        `json:"text_entries"`
	Types    []string   `json:"types"`
	First    civil.Date `json:"first"`
	Last     civil.Date `json:"last"`
}

func summarize(file string, panels []*model.Panel) synopsis {
	s := synopsis{File: file, Panels: len(panels), Types: []string{}}
	seen := map[string]bool{}
	for i, p := range panels {
		if i == 0 || p.Date().Before(s.First) {
			s.First = p.Date()
		}
		if i == 0 || p.Date().After(s.Last) {
			s.Last = p.Date()
		}
		for _, e := range p.Entries() {
			s.Entries++
			if e.Insight() {
				s.Insights++
			}
			if e.IsText() {
				s.Text++
			}
			if !seen[e.Type()] {
				seen[e.Type()] = true
				s.Types = append(s.Types, e.Type())
			}
		}
	}
	return s
}

func (s synopsis) span() string {
	switch {
	case s.Panels == 0:
		return "empty"
	case s.First == s.Last:
		return s.First.String()
	}
	return fmt.Sprintf("%s to %s (%d days)", s.First, s.Last, s.Last.DaysSince(s.First)+1)
}

func runSynopsis(cmd *cobra.Command, args []string) error {
	var all []synopsis
	for _, path := range args {
		arch, err := storage.LoadArchive(path, storageOptions())
		if err != nil {
			return err
		}
		all = append(all, summarize(path, arch.Panels))
	}
	return writeSynopses(cmd.OutOrStdout(), all, synopsisFormat)
}

func writeSynopses(w io.Writer, all []synopsis, format string) error {
	switch format {
	case "csv":
		fmt.Fprintln(w, "file,panels,entries,insights,first,last")
		for _, s := range all {
			fmt.Fprintf(w, "%s,%d,%d,%d,%s,%s\n", csvEscape(s.File), s.Panels, s.Entries, s.Insights, s.First, s.Last)
		}
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	case "md":
		for _, s := range all {
			fmt.Fprintln(w, s.File)
			fmt.Fprintln(w, "--------------------------------")
			fmt.Fprintf(w, "%-12s%d\n", "Panels", s.Panels)
			fmt.Fprintf(w, "%-12s%d (%d insights, %d text)\n", "Entries", s.Entries, s.Insights, s.Text)
			fmt.Fprintf(w, "%-12s%s\n", "Span", s.span())
			if len(s.Types) > 0 {
				fmt.Fprintf(w, "%-12s%s\n", "Types", joinComma(s.Types))
			}
		}
	default:
		return fmt.Errorf("unknown format %q (want md, csv or json)", format)
	}
	return nil
}

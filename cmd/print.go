package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Tiliavir/psp/internal/model"
	"github.com/Tiliavir/psp/internal/storage"
	"github.com/Tiliavir/psp/internal/timecalc"
)

var (
	printDate string
	printYAML bool
)

var printCmd = &cobra.Command{
	Use:   "print FILE...",
	Short: "Print the panels of archives",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPrint,
}

func init() {
	printCmd.Flags().StringVar(&printDate, "date", "", "Only print the panel of this date (YYYY-MM-DD)")
	printCmd.Flags().BoolVar(&printYAML, "yaml", false, "Print as YAML")
}

func runPrint(cmd *cobra.Command, args []string) error {
	var panels []*model.Panel
	for _, path := range args {
		if printDate != "" {
			date, err := timecalc.ParseDate(printDate)
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}
			p, err := storage.LoadPanel(path, date, storageOptions())
			if err != nil {
				return err
			}
			panels = append(panels, p)
			continue
		}
		arch, err := storage.LoadArchive(path, storageOptions())
		if err != nil {
			return err
		}
		panels = append(panels, arch.Panels...)
	}
	return printPanels(cmd.OutOrStdout(), panels, printYAML)
}

type printedPanel struct {
	Date    string         `yaml:"date"`
	Rating  string         `yaml:"rating,omitempty"`
	Entries []printedEntry `yaml:"entries,omitempty"`
}

type printedEntry struct {
	Time          string `yaml:"time"`
	Insight       bool   `yaml:"insight,omitempty"`
	Type          string `yaml:"type"`
	Format        string `yaml:"format,omitempty"`
	Encoding      string `yaml:"encoding"`
	Question      string `yaml:"question,omitempty"`
	Title         string `yaml:"title,omitempty"`
	Caption       string `yaml:"caption,omitempty"`
	Transcription string `yaml:"transcription,omitempty"`
	Text          string `yaml:"text,omitempty"`
	Bytes         int64  `yaml:"bytes,omitempty"`
	File          string `yaml:"file,omitempty"`
}

func describe(p *model.Panel) printedPanel {
	pp := printedPanel{Date: p.Date().String()}
	pp.Rating, _ = p.Rating()
	for _, e := range p.Entries() {
		pe := printedEntry{
			Time:          timecalc.FormatDateTime(e.Time(), false),
			Insight:       e.Insight(),
			Type:          e.Type(),
			Encoding:      e.Encoding(),
			Question:      e.Attrs[model.AttrQuestion],
			Title:         e.Attrs[model.AttrTitle],
			Caption:       e.Attrs[model.AttrCaption],
			Transcription: e.Attrs[model.AttrTranscription],
			File:          e.Source(),
		}
		pe.Format, _ = e.Format()
		var err error
		switch {
		case e.Bundle != nil:
			pe.Text, err = e.BundleText()
		case e.IsText():
			pe.Text, err = e.Text()
		default:
			err = errNotShown
		}
		if err != nil {
			pe.Text = ""
			pe.Bytes, _ = e.Size()
		}
		pp.Entries = append(pp.Entries, pe)
	}
	return pp
}

var errNotShown = errors.New("binary payload")

func printPanels(w io.Writer, panels []*model.Panel, asYAML bool) error {
	described := make([]printedPanel, 0, len(panels))
	for _, p := range panels {
		described = append(described, describe(p))
	}
	if asYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(described); err != nil {
			return err
		}
		return enc.Close()
	}

	for i, p := range described {
		if i > 0 {
			fmt.Fprintln(w)
		}
		header := p.Date
		if p.Rating != "" {
			header += "  " + p.Rating
		}
		fmt.Fprintln(w, header)
		for _, e := range p.Entries {
			kind := e.Type
			if e.Format != "" {
				kind += "-" + e.Format
			}
			if e.Insight {
				kind += " (insight)"
			}
			fmt.Fprintf(w, "  %s  %s", e.Time, kind)
			for _, attr := range []string{e.Question, e.Title, e.Caption} {
				if attr != "" {
					fmt.Fprintf(w, "  %s", attr)
				}
			}
			fmt.Fprintln(w)
			if e.Text != "" {
				fmt.Fprintln(w, indent(e.Text, "    "))
			} else {
				fmt.Fprintf(w, "    <%s, %d bytes>\n", e.Encoding, e.Bytes)
			}
		}
	}
	return nil
}

func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	return prefix + strings.Join(lines, "\n"+prefix)
}

func joinComma(items []string) string {
	return strings.Join(items, ", ")
}

// csvEscape quotes s when it contains a separator, quote or line break.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	// Escape internal double quotes by doubling them.
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

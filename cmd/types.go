package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/psp/internal/filetypes"
)

var typesCmd = &cobra.Command{
	Use:   "types [NAME]",
	Short: "List the known file types or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTypes,
}

func runTypes(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		for _, name := range app.reg.Types() {
			writeType(out, app.reg, name)
		}
		return nil
	}
	name := app.reg.Resolve(args[0])
	if !app.reg.HasType(name) {
		return unknownType(app.reg, args[0])
	}
	writeType(out, app.reg, name)
	return nil
}

func writeType(w io.Writer, reg *filetypes.Registry, name string) {
	kind := "binary"
	if text, _ := reg.IsText(name); text {
		kind = "text"
	}
	line := fmt.Sprintf("%-10s %-6s", name, kind)
	if exts := reg.Extensions(name); len(exts) > 0 {
		line += " " + joinComma(exts)
	}
	if aliases := reg.Aliases(name); len(aliases) > 0 {
		line += " (aliases: " + joinComma(aliases) + ")"
	}
	fmt.Fprintln(w, strings.TrimRight(line, " "))
}

func unknownType(reg *filetypes.Registry, name string) error {
	suggestions := reg.Suggest(name)
	if len(suggestions) == 0 {
		return fmt.Errorf("unknown type %q", name)
	}
	if len(suggestions) > 3 {
		suggestions = suggestions[:3]
	}
	return fmt.Errorf("unknown type %q; did you mean %s?", name, strings.Join(suggestions, ", "))
}

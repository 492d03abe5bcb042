package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/psp/internal/archive"
	"github.com/Tiliavir/psp/internal/storage"
)

var checkCmd = &cobra.Command{
	Use:   "check FILE...",
	Short: "Load archives and report problems",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range args {
		opts := storageOptions()
		warnings := 0
		opts.Loader.OnWarning = func(*archive.Warning) { warnings++ }

		arch, err := storage.LoadArchive(path, opts)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
			failed++
			continue
		}
		entries := 0
		for _, p := range arch.Panels {
			entries += p.Len()
		}
		fmt.Fprintf(out, "%s: ok (%s, %s, %s)\n", path,
			plural(len(arch.Panels), "panel"), plural(entries, "entry"), plural(warnings, "warning"))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d archives failed to load", failed, len(args))
	}
	return nil
}

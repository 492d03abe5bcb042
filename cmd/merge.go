package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/psp/internal/model"
	"github.com/Tiliavir/psp/internal/storage"
)

var (
	mergeOut   string
	mergeForce bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge --out DIR FILE...",
	Short: "Merge archives into one, joining panels of the same date",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMerge,
}

func init() {
	mergeCmd.Flags().StringVar(&mergeOut, "out", "", "Directory to write the merged archive and its files to")
	mergeCmd.Flags().BoolVar(&mergeForce, "force", false, "Overwrite an existing archive")
	_ = mergeCmd.MarkFlagRequired("out")
}

func runMerge(cmd *cobra.Command, args []string) error {
	var panels []*model.Panel
	for _, path := range args {
		arch, err := storage.LoadArchive(path, storageOptions())
		if err != nil {
			return err
		}
		panels = append(panels, arch.Panels...)
	}
	merged, err := model.MergePanels(panels)
	if err != nil {
		return err
	}
	app.logger.Debug("merged panels", "in", len(panels), "out", len(merged))

	path, err := storage.SaveArchive(mergeOut, app.cfg.ArchiveName, merged, storageOptions(), mergeForce)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s from %s)\n", path,
		plural(len(merged), "panel"), plural(len(args), "archive"))
	return nil
}

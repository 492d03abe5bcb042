package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/psp/internal/config"
	"github.com/Tiliavir/psp/internal/filetypes"
	"github.com/Tiliavir/psp/internal/logging"
	"github.com/Tiliavir/psp/internal/storage"
)

var (
	configPath string
	warnLevel  int
	encoding   string
	verbose    bool
)

// app holds what every command needs once flags and config are resolved.
var app struct {
	cfg    config.Config
	reg    *filetypes.Registry
	logger *slog.Logger
}

var rootCmd = &cobra.Command{
	Use:   "psp",
	Short: "psp - a journal archive toolkit",
	Long: `psp loads, checks and rewrites journal archives: JSON files of dated
panels holding timestamped text and binary entries, with large payloads
kept as files next to the archive.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default $PSP_CONFIG or ~/.psp/config.yaml)")
	flags.IntVarP(&warnLevel, "wlevel", "W", 1, "Warning level: 0 ignore, 1 report, 2 fail")
	flags.StringVar(&encoding, "encoding", "", "Text encoding of archive files")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(synopsisCmd)
	rootCmd.AddCommand(printCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(typesCmd)
}

// setup resolves the configuration. Flags win over the config file.
func setup(cmd *cobra.Command, args []string) error {
	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("wlevel") {
		cfg.WarningLevel = warnLevel
	}
	if encoding != "" {
		cfg.Encoding = encoding
	}
	reg, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	app.cfg = cfg
	app.reg = reg
	app.logger = logging.New(cmd.ErrOrStderr(), logging.Level(verbose), cmd.Name())
	app.logger.Debug("configuration loaded", "warning_level", cfg.WarningLevel, "encoding", cfg.Encoding)
	return nil
}

// storageOptions returns fresh loader and dumper settings for one archive.
func storageOptions() storage.Options {
	lc := app.cfg.LoaderConfig(app.reg)
	lc.Logger = app.logger
	dc := app.cfg.DumperConfig(app.reg)
	dc.Logger = app.logger
	return storage.Options{Encoding: app.cfg.Encoding, Loader: lc, Dumper: dc}
}

func plural(n int, word string) string {
	switch {
	case n == 1:
		return "1 " + word
	case strings.HasSuffix(word, "y"):
		return fmt.Sprintf("%d %sies", n, strings.TrimSuffix(word, "y"))
	}
	return fmt.Sprintf("%d %ss", n, word)
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jpinol/fsimg/internal/disk"
	"github.com/jpinol/fsimg/internal/logger"
)

const AppName = "fsimg"

var logLevel string

// Execute builds and runs the fsimg root command. Errors are printed to
// stderr without cobra's "Error:"/usage boilerplate so the stable
// messages named in SPEC_FULL.md's external interfaces (e.g. "Error
// opening the file", "Fitxer '<name>' no trobat.") are what a caller
// actually sees.
func Execute() error {
	rootCmd := &cobra.Command{
		Use:           AppName,
		Short:         AppName + " - read-only EXT2/FAT16 image inspector",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"minimum log level: debug, info, warn, error")

	rootCmd.AddCommand(DefineInfoCommand())
	rootCmd.AddCommand(DefineTreeCommand())
	rootCmd.AddCommand(DefineCatCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return nil
}

func newLogger() *logger.Logger {
	return logger.New(os.Stderr, logger.ParseLevel(parseLevelArg(logLevel)))
}

func parseLevelArg(s string) string {
	switch s {
	case "debug", "DEBUG":
		return "DEBUG"
	case "warn", "WARN":
		return "WARN"
	case "error", "ERROR":
		return "ERROR"
	default:
		return "INFO"
	}
}

func openImage(path string, useMmap bool) (disk.Image, error) {
	img, err := disk.OpenImage(path, disk.Options{UseMmap: useMmap})
	if err != nil {
		return nil, fmt.Errorf("Error opening the file")
	}
	return img, nil
}

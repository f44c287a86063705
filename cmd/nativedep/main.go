package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tsukumogami/nativedep/internal/buildinfo"
	"github.com/tsukumogami/nativedep/internal/config"
	"github.com/tsukumogami/nativedep/internal/log"
	"github.com/tsukumogami/nativedep/internal/userconfig"
)

var (
	quietFlag   bool
	verboseFlag bool
	debugFlag   bool
	configFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "nativedep",
	Short: "Provision the Z3 native library for a downstream build",
	Long: `nativedep installs the Z3 headers and shared library on the current
machine, through the system package manager, the Python wheel, or the
upstream release archive, and writes an environment file that a later
build sources before compiling against it.`,
	Version:       buildinfo.Version(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetDefault(log.NewText(os.Stderr, determineLogLevel()))
		configureColor(os.Stdout)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Only print errors")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Print progress details")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Print debug output")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Profile file (default $NATIVEDEP_HOME/config.toml)")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(platformCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// determineLogLevel applies, in order: flags (debug > verbose > quiet),
// then the NATIVEDEP_DEBUG/VERBOSE/QUIET environment variables, then WARN.
func determineLogLevel() slog.Level {
	switch {
	case debugFlag:
		return slog.LevelDebug
	case verboseFlag:
		return slog.LevelInfo
	case quietFlag:
		return slog.LevelError
	}
	switch {
	case isTruthy(os.Getenv("NATIVEDEP_DEBUG")):
		return slog.LevelDebug
	case isTruthy(os.Getenv("NATIVEDEP_VERBOSE")):
		return slog.LevelInfo
	case isTruthy(os.Getenv("NATIVEDEP_QUIET")):
		return slog.LevelError
	}
	return slog.LevelWarn
}

func isTruthy(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// loadSettings returns the directory layout and the profile, honoring
// --config.
func loadSettings() (*config.Config, *userconfig.Config, error) {
	paths, err := config.DefaultConfig()
	if err != nil {
		return nil, nil, err
	}
	path := configFlag
	if path == "" {
		path = paths.ConfigFile
	}
	profile, err := userconfig.LoadFile(path)
	if err != nil {
		return nil, nil, usageError{err}
	}
	return paths, profile, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		printError(err)
		exitWithCode(exitCodeFor(err))
	}
}

func printError(err error) {
	fmt.Fprintln(os.Stderr, formatError(err))
}

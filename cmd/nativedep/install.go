package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tsukumogami/nativedep/internal/acquire"
	"github.com/tsukumogami/nativedep/internal/log"
	"github.com/tsukumogami/nativedep/internal/platform"
	"github.com/tsukumogami/nativedep/internal/provision"
)

var (
	installEnvFile    string
	installStrategies []string
	installForce      bool
	installFallback   bool
)

var installCmd = &cobra.Command{
	Use:   "install [x86_64|aarch64]",
	Short: "Install Z3 and write the environment file",
	Long: `Install the Z3 headers and shared library, trying the configured
strategies in order, then write the environment file.

The optional target selects the release asset architecture; by default
the host architecture is used.

Examples:
  nativedep install
  nativedep install aarch64 --strategy archive
  nativedep install --strategy system --strategy archive --fallback`,
	Args:      installArgs,
	ValidArgs: platform.SupportedTargets,
	RunE:      runInstall,
}

func init() {
	installCmd.Flags().StringVar(&installEnvFile, "env-file", "", "Environment file to write (default from profile, .depenv)")
	installCmd.Flags().StringSliceVar(&installStrategies, "strategy", nil, "Strategy to try, repeatable: system, wheel, archive")
	installCmd.Flags().BoolVar(&installForce, "force", false, "Reinstall even if a valid install is recorded")
	installCmd.Flags().BoolVar(&installFallback, "fallback", false, "Try the next strategy after a failure")
}

func installArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return usageError{fmt.Errorf("accepts at most one target, got %d", len(args))}
	}
	if len(args) == 1 && !platform.ParseArch(args[0]).IsKnown() {
		return usageError{fmt.Errorf("invalid target %q (valid: %v)", args[0], platform.SupportedTargets)}
	}
	return nil
}

func parseStrategies(raw []string) ([]acquire.Name, error) {
	var names []acquire.Name
	for _, s := range raw {
		n, err := acquire.ParseName(s)
		if err != nil {
			return nil, usageError{err}
		}
		names = append(names, n)
	}
	return names, nil
}

func runInstall(cmd *cobra.Command, args []string) error {
	strategies, err := parseStrategies(installStrategies)
	if err != nil {
		return err
	}
	paths, profile, err := loadSettings()
	if err != nil {
		return err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return err
	}
	errorContext.IncludeDir = profile.IncludeDir
	errorContext.LibDir = profile.LibDir
	errorContext.LockFile = paths.LockFile

	opts := []provision.Option{
		provision.WithLogger(log.Default()),
		provision.WithNotify(func(e provision.Event) { printInfo(eventLine(e)) }),
	}
	if !quietFlag {
		opts = append(opts, provision.WithProgress(os.Stderr))
	}
	p, err := provision.New(profile, paths, opts...)
	if err != nil {
		return err
	}

	runOpts := provision.Options{
		Strategies: strategies,
		EnvFile:    installEnvFile,
		Force:      installForce,
		Fallback:   installFallback,
	}
	if len(args) == 1 {
		runOpts.Arch = args[0]
	}

	report, err := p.Run(cmd.Context(), runOpts)
	if err != nil {
		return err
	}
	if !quietFlag {
		printReport(os.Stdout, report)
	}
	return nil
}

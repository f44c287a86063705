package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tsukumogami/nativedep/internal/userconfig"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the provisioning profile",
	Long: `Manage the provisioning profile.

The profile is stored in $NATIVEDEP_HOME/config.toml (or the file given
with --config). Tables such as [packages] and [assets] are edited in the
file directly; the scalar keys below can be read and set here.

Examples:
  nativedep config get strategies
  nativedep config set strategies archive,wheel
  nativedep config set env.export_library_file true`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadSettings()
		if err != nil {
			return err
		}
		for _, k := range userconfig.SortedKeys() {
			v, _ := cfg.Get(k)
			fmt.Printf("%s = %s\n", k, v)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadSettings()
		if err != nil {
			return err
		}

		value, ok := cfg.Get(args[0])
		if !ok {
			printAvailableKeys()
			return usageError{fmt.Errorf("unknown config key: %s", args[0])}
		}
		fmt.Println(value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		paths, cfg, err := loadSettings()
		if err != nil {
			return err
		}
		if err := cfg.Set(key, value); err != nil {
			printAvailableKeys()
			return usageError{err}
		}

		path := configFlag
		if path == "" {
			path = paths.ConfigFile
		}
		if err := cfg.SaveFile(path); err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", key, value)
		return nil
	},
}

func printAvailableKeys() {
	keys := userconfig.AvailableKeys()
	fmt.Fprintf(os.Stderr, "Available keys:\n")
	for _, k := range userconfig.SortedKeys() {
		fmt.Fprintf(os.Stderr, "  %s - %s\n", k, keys[k])
	}
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}

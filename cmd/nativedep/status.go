package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tsukumogami/nativedep/internal/state"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the recorded install",
	Long: `Show the last successful install recorded in $NATIVEDEP_HOME/state.json
and whether its files are still present.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, _, err := loadSettings()
		if err != nil {
			return err
		}
		rec, err := state.NewStore(paths.StateFile).Load()
		if err != nil {
			return err
		}

		if statusJSON {
			if rec == nil {
				return printJSON(struct{}{})
			}
			return printJSON(rec)
		}
		if rec == nil {
			fmt.Println("No install recorded.")
			return nil
		}

		fmt.Printf("Strategy:  %s\n", rec.Result.Strategy)
		if rec.Result.Version != "" {
			fmt.Printf("Version:   %s\n", rec.Result.Version)
		}
		if rec.Result.Source != "" {
			fmt.Printf("Source:    %s\n", rec.Result.Source)
		}
		fmt.Printf("Platform:  %s\n", rec.Profile)
		fmt.Printf("Header:    %s\n", rec.Result.HeaderPath)
		fmt.Printf("Library:   %s\n", rec.Result.LibraryDir)
		fmt.Printf("Installed: %s\n", rec.InstalledAt.Local().Format(time.RFC1123))
		if err := rec.Result.Validate(); err != nil {
			fmt.Printf("Valid:     no (%v)\n", err)
		} else {
			fmt.Println("Valid:     yes")
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the record as JSON")
}

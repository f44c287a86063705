package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsukumogami/nativedep/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build details",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(buildinfo.Read().String())
	},
}

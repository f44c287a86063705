package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsukumogami/nativedep/internal/log"
	"github.com/tsukumogami/nativedep/internal/provision"
)

var platformJSON bool

type platformReport struct {
	OS          string   `json:"os"`
	Arch        string   `json:"arch"`
	Supported   bool     `json:"supported"`
	Libc        string   `json:"libc,omitempty"`
	LinuxFamily string   `json:"linux_family,omitempty"`
	Manager     string   `json:"package_manager,omitempty"`
	Available   []string `json:"available_strategies"`
}

var platformCmd = &cobra.Command{
	Use:   "platform",
	Short: "Show the detected platform and usable strategies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, profile, err := loadSettings()
		if err != nil {
			return err
		}
		p, err := provision.New(profile, paths, provision.WithLogger(log.Default()))
		if err != nil {
			return err
		}
		host, manager, err := p.Probe(provision.Options{})
		if err != nil {
			return err
		}

		r := platformReport{
			OS:          string(host.OS),
			Arch:        string(host.Arch),
			Supported:   host.Arch.IsKnown(),
			Libc:        host.Libc,
			LinuxFamily: host.LinuxFamily,
			Available:   []string{},
		}
		if manager != nil {
			r.Manager = string(manager.Kind())
		}
		names, err := profile.StrategyNames()
		if err != nil {
			return usageError{err}
		}
		env := p.Env(host, manager)
		for _, n := range names {
			if p.Strategy(n).Available(env) == nil {
				r.Available = append(r.Available, string(n))
			}
		}

		if platformJSON {
			return printJSON(r)
		}
		fmt.Printf("Platform:        %s/%s\n", r.OS, r.Arch)
		if !r.Supported {
			fmt.Println("                 (no prebuilt assets for this architecture)")
		}
		if r.Libc != "" {
			fmt.Printf("Libc:            %s\n", r.Libc)
		}
		if r.LinuxFamily != "" {
			fmt.Printf("Distribution:    %s\n", r.LinuxFamily)
		}
		pm := r.Manager
		if pm == "" {
			pm = "none"
		}
		fmt.Printf("Package manager: %s\n", pm)
		fmt.Printf("Strategies:      %v\n", r.Available)
		return nil
	},
}

func init() {
	platformCmd.Flags().BoolVar(&platformJSON, "json", false, "Print as JSON")
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/recmig/recmig/internal/config"
)

const (
	// Version is the current version of recmig
	Version = "0.2.0"
	// Build can be set via ldflags at compile time
	Build = "dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		warnMinVersion()
		if jsonOutput {
			outputJSON(map[string]string{
				"version": Version,
				"build":   Build,
			})
		} else {
			fmt.Printf("recmig version %s (%s)\n", Version, Build)
		}
	},
}

// warnMinVersion compares the binary against the config's min-version
// so shared config files can flag stale installs
func warnMinVersion() {
	min := config.GetString("min-version")
	if min == "" {
		return
	}
	want, have := "v"+min, "v"+Version
	if !semver.IsValid(want) {
		fmt.Fprintf(os.Stderr, "Warning: invalid min-version %q in config\n", min)
		return
	}
	if semver.Compare(have, want) < 0 {
		fmt.Fprintf(os.Stderr, "Warning: recmig %s is older than the configured minimum %s\n", Version, min)
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

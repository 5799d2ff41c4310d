package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildVersion is overridden at build time via -ldflags, matching the
// teacher's convention of leaving a linker-settable var rather than
// hardcoding a release string.
var buildVersion = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the govpmu version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("govpmu " + buildVersion)
	},
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("mail-sorter version %s\n", Version)
	},
}

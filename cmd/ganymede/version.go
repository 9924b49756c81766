package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build identity, overridden through -ldflags at release time.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionFlags struct {
	short bool
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if versionFlags.short {
			fmt.Println(Version)
			return
		}
		fmt.Printf("ganymede %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		fmt.Printf("  %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().BoolVar(&versionFlags.short, "short", false, "print only the version number")
}

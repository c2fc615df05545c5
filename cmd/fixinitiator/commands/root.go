package commands

import (
	"github.com/spf13/cobra"
)

// RootCmd is the root command for fixinitiator.
var RootCmd = &cobra.Command{
	Use:              "fixinitiator",
	Short:            "FIX session initiator",
	TraverseChildren: true,
}

func init() {
	RootCmd.AddCommand(NewRunCmd())
}

package commands

import (
	"github.com/spf13/cobra"
)

// RootCmd is the root command for fixacceptor.
var RootCmd = &cobra.Command{
	Use:              "fixacceptor",
	Short:            "FIX session acceptor",
	TraverseChildren: true,
}

func init() {
	RootCmd.AddCommand(NewRunCmd())
}

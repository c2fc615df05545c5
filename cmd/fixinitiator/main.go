package main

import (
	"fmt"
	"os"

	"github.com/wxcuop/pyfixmsg-plus/cmd/fixinitiator/commands"
)

func main() {
	if err := commands.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

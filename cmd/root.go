package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "intervu"}

	root.AddCommand(serveCMD(), migrateCMD(), interviewCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"ccproxy/pkg/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ccproxy %s\n", buildinfo.Version)
		fmt.Printf("Git Commit: %s\n", buildinfo.GitCommit)
		fmt.Printf("Build Date: %s\n", buildinfo.BuildDate)
		fmt.Printf("Go Version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

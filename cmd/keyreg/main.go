package main

import (
	"os"

	"github.com/mattn/go-colorable"
	"github.com/spf13/cobra"
)

var (
	stdout = colorable.NewColorableStdout()
	stderr = colorable.NewColorableStderr()
)

var rootCmd = &cobra.Command{
	Version:       "indev",
	Use:           "keyreg",
	Short:         "Tools for keyreg usernames and passkeys",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(credsCmd)
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("error:", err)
		os.Exit(1)
	}
}

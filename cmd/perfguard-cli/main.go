package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes
const (
	exitSuccess = 0
	exitInvalid = 1
	exitError   = 2
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if ec, ok := err.(exitCodeError); ok {
			os.Exit(ec.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitError)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "perfguard",
		Short:         "Inspect perfguard rule files and replay snapshot batches",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newValidateCmd())
	root.AddCommand(newRulesCmd())
	root.AddCommand(newReplayCmd())

	return root
}

// exitCodeError carries a process exit code through cobra's RunE
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

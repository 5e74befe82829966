package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "warden",
		Short:         "Warden - security audit project tracker",
		Long:          "Warden tracks audited web projects, their vulnerability scans and uploaded system reports, behind role-gated access with a full audit trail.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newUserCommand())
	root.AddCommand(newJanitorCommand())

	root.SetVersionTemplate(fmt.Sprintf("warden %s (commit %s, built %s)\n", version, commit, buildDate))
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

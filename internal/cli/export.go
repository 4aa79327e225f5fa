package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export everything stored for the user as JSON",
		Long:  "Dump core memory, maturity, recall events, archival records, watch items, alerts and delegations for the user given by -u.",
		Run:   runExport,
	}

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	out, err := s.ExportUser(cmd.Context(), getUser())
	if err != nil {
		exitErr("export", err)
	}

	printJSON(out)
}

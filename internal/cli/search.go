package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	archiveCmd := &cobra.Command{
		Use:   "archive [content]",
		Short: "Store a long-term archival fact",
		Args:  cobra.MinimumNArgs(1),
		Run:   runArchive,
	}
	archiveCmd.Flags().StringP("category", "c", "", "Category")
	archiveCmd.Flags().IntP("importance", "i", 5, "Importance (1-10)")

	archivalCmd := &cobra.Command{
		Use:   "archival",
		Short: "List archival records by importance",
		Args:  cobra.NoArgs,
		Run:   runArchival,
	}
	archivalCmd.Flags().StringP("category", "c", "", "Filter by category")
	archivalCmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(archiveCmd, archivalCmd)
}

func runArchive(cmd *cobra.Command, args []string) {
	category, _ := cmd.Flags().GetString("category")
	importance, _ := cmd.Flags().GetInt("importance")

	svc, s := openService()
	defer s.Close()

	rec, err := svc.Archive(cmd.Context(), getUser(), strings.Join(args, " "), category, importance)
	if err != nil {
		exitErr("archive", err)
	}
	printJSON(rec)
}

func runArchival(cmd *cobra.Command, args []string) {
	category, _ := cmd.Flags().GetString("category")
	limit, _ := cmd.Flags().GetInt("limit")

	svc, s := openService()
	defer s.Close()

	records, err := svc.SearchArchival(cmd.Context(), getUser(), category, limit)
	if err != nil {
		exitErr("archival", err)
	}
	printJSON(records)
}

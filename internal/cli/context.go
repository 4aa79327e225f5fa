package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/shop-memory/internal/memory"
	"github.com/rcliao/shop-memory/internal/model"
)

func init() {
	contextCmd := &cobra.Command{
		Use:   "context",
		Short: "Show the user's full memory context",
		Long:  "Core memory, the 10 most recent events and the 5 most important archival records.",
		Args:  cobra.NoArgs,
		Run:   runContext,
	}

	coreCmd := &cobra.Command{
		Use:   "core",
		Short: "Show the user's core memory",
		Args:  cobra.NoArgs,
		Run:   runCore,
	}

	goalCmd := &cobra.Command{
		Use:   "goal [text]",
		Short: "Append an active shopping goal",
		Args:  cobra.MinimumNArgs(1),
		Run:   runGoal,
	}
	goalCmd.Flags().IntP("priority", "p", 5, "Goal priority (0-10)")

	prefsCmd := &cobra.Command{
		Use:   "prefs",
		Short: "Overwrite shopping preferences",
		Long:  "Overwrite price range, favorite categories or idiosyncrasies. Only flags that are set are changed.",
		Args:  cobra.NoArgs,
		Run:   runPrefs,
	}
	prefsCmd.Flags().Float64("min", 0, "Minimum price")
	prefsCmd.Flags().Float64("max", 0, "Maximum price")
	prefsCmd.Flags().StringP("categories", "c", "", "Comma-separated favorite categories")
	prefsCmd.Flags().StringP("idiosyncrasies", "i", "", "Comma-separated idiosyncrasies")

	RootCmd.AddCommand(contextCmd, coreCmd, goalCmd, prefsCmd)
}

func runContext(cmd *cobra.Command, args []string) {
	svc, s := openService()
	defer s.Close()

	mc, err := svc.GetContext(cmd.Context(), getUser())
	if err != nil {
		exitErr("context", err)
	}
	printJSON(mc)
}

func runCore(cmd *cobra.Command, args []string) {
	svc, s := openService()
	defer s.Close()

	core, err := svc.GetCoreMemory(cmd.Context(), getUser())
	if err != nil {
		exitErr("core", err)
	}
	printJSON(core)
}

func runGoal(cmd *cobra.Command, args []string) {
	priority, _ := cmd.Flags().GetInt("priority")

	svc, s := openService()
	defer s.Close()

	core, err := svc.AddGoal(cmd.Context(), getUser(), strings.Join(args, " "), priority)
	if err != nil {
		exitErr("goal", err)
	}
	printJSON(core)
}

func runPrefs(cmd *cobra.Command, args []string) {
	var p memory.Preferences
	flags := cmd.Flags()

	if flags.Changed("min") || flags.Changed("max") {
		if !flags.Changed("min") || !flags.Changed("max") {
			exitErr("prefs", fmt.Errorf("--min and --max must be set together"))
		}
		lo, _ := flags.GetFloat64("min")
		hi, _ := flags.GetFloat64("max")
		p.PriceRange = &model.PriceRange{Min: lo, Max: hi}
	}
	if flags.Changed("categories") {
		v, _ := flags.GetString("categories")
		p.FavoriteCategories = append([]string{}, splitList(v)...)
	}
	if flags.Changed("idiosyncrasies") {
		v, _ := flags.GetString("idiosyncrasies")
		p.Idiosyncrasies = append([]string{}, splitList(v)...)
	}

	svc, s := openService()
	defer s.Close()

	core, err := svc.UpdatePreferences(cmd.Context(), getUser(), p)
	if err != nil {
		exitErr("prefs", err)
	}
	printJSON(core)
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/shop-memory/internal/pricing"
)

func init() {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage the price watch list",
	}

	addCmd := &cobra.Command{
		Use:   "add [url]",
		Short: "Start tracking a product URL",
		Args:  cobra.ExactArgs(1),
		Run:   runWatchAdd,
	}
	addCmd.Flags().StringP("title", "t", "", "Product title (required)")
	addCmd.Flags().Float64P("price", "p", 0, "Current price (required)")
	addCmd.Flags().Float64("target", 0, "Target price")
	addCmd.Flags().String("source", "", "Store or marketplace name")
	addCmd.Flags().String("image", "", "Image URL")
	addCmd.MarkFlagRequired("title")
	addCmd.MarkFlagRequired("price")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List watch items, newest first",
		Args:  cobra.NoArgs,
		Run:   runWatchList,
	}
	listCmd.Flags().BoolP("all", "a", false, "Include deactivated items")

	historyCmd := &cobra.Command{
		Use:   "history [watch-item-id]",
		Short: "Show price history, newest first",
		Args:  cobra.ExactArgs(1),
		Run:   runWatchHistory,
	}
	historyCmd.Flags().IntP("limit", "l", pricing.DefaultHistoryLimit, "Max samples")

	rmCmd := &cobra.Command{
		Use:   "rm [watch-item-id]",
		Short: "Stop tracking an item (history is kept)",
		Args:  cobra.ExactArgs(1),
		Run:   runWatchRm,
	}

	watchCmd.AddCommand(addCmd, listCmd, historyCmd, rmCmd)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check prices of all active watch items now",
		Args:  cobra.NoArgs,
		Run:   runCheck,
	}

	RootCmd.AddCommand(watchCmd, checkCmd)
}

func runWatchAdd(cmd *cobra.Command, args []string) {
	title, _ := cmd.Flags().GetString("title")
	price, _ := cmd.Flags().GetFloat64("price")
	source, _ := cmd.Flags().GetString("source")
	image, _ := cmd.Flags().GetString("image")

	in := pricing.NewWatchItem{
		URL:          args[0],
		Title:        title,
		CurrentPrice: price,
		Source:       source,
		ImageURL:     image,
	}
	if cmd.Flags().Changed("target") {
		target, _ := cmd.Flags().GetFloat64("target")
		in.TargetPrice = &target
	}

	svc, s := openService()
	defer s.Close()

	item, err := svc.AddToWatchList(cmd.Context(), getUser(), in)
	if err != nil {
		exitErr("watch add", err)
	}
	printJSON(item)
}

func runWatchList(cmd *cobra.Command, args []string) {
	all, _ := cmd.Flags().GetBool("all")

	svc, s := openService()
	defer s.Close()

	items, err := svc.GetWatchList(cmd.Context(), getUser(), !all)
	if err != nil {
		exitErr("watch list", err)
	}
	printJSON(items)
}

func runWatchHistory(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	svc, s := openService()
	defer s.Close()

	samples, err := svc.GetPriceHistory(cmd.Context(), getUser(), args[0], limit)
	if err != nil {
		exitErr("watch history", err)
	}
	printJSON(samples)
}

func runWatchRm(cmd *cobra.Command, args []string) {
	svc, s := openService()
	defer s.Close()

	if err := svc.RemoveFromWatchList(cmd.Context(), getUser(), args[0]); err != nil {
		exitErr("watch rm", err)
	}
	printJSON(map[string]string{"deactivated": args[0]})
}

func runCheck(cmd *cobra.Command, args []string) {
	svc, s := openService()
	defer s.Close()

	report, err := svc.CheckPrices(cmd.Context(), getUser())
	if err != nil {
		exitErr("check", err)
	}
	printJSON(report)
}

package cli

import (
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rcliao/shop-memory/internal/pricing"
)

func init() {
	budgetCmd := &cobra.Command{
		Use:   "budget",
		Short: "Manage the current month's budget",
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show this month's budget",
		Args:  cobra.NoArgs,
		Run:   runBudgetGet,
	}

	setCmd := &cobra.Command{
		Use:   "set [monthly-budget]",
		Short: "Set this month's budget",
		Args:  cobra.ExactArgs(1),
		Run:   runBudgetSet,
	}
	setCmd.Flags().Float64("threshold", 0, "Alert threshold ratio (0-1]")

	spendCmd := &cobra.Command{
		Use:   "spend [amount]",
		Short: "Record spending against this month's budget",
		Args:  cobra.ExactArgs(1),
		Run:   runBudgetSpend,
	}

	budgetCmd.AddCommand(getCmd, setCmd, spendCmd)
	RootCmd.AddCommand(budgetCmd)
}

func runBudgetGet(cmd *cobra.Command, args []string) {
	svc, s := openService()
	defer s.Close()

	b, err := svc.GetBudget(cmd.Context(), getUser())
	if err != nil {
		exitErr("budget get", err)
	}
	printJSON(b)
}

func runBudgetSet(cmd *cobra.Command, args []string) {
	monthly, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		exitErr("budget set", err)
	}
	var threshold *float64
	if cmd.Flags().Changed("threshold") {
		v, _ := cmd.Flags().GetFloat64("threshold")
		threshold = &v
	}

	svc, s := openService()
	defer s.Close()

	b, err := svc.UpdateBudget(cmd.Context(), getUser(), monthly, threshold)
	if err != nil {
		exitErr("budget set", err)
	}
	printJSON(b)
}

func runBudgetSpend(cmd *cobra.Command, args []string) {
	amount, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		exitErr("budget spend", err)
	}

	svc, s := openService()
	defer s.Close()

	svc.Budget().OnBreach(func(b pricing.BudgetBreach) {
		log.Warn().
			Str("month", b.Month).
			Float64("ratio", b.Ratio).
			Msg("monthly budget threshold reached")
	})

	res, err := svc.AddSpending(cmd.Context(), getUser(), amount)
	if err != nil {
		exitErr("budget spend", err)
	}
	printJSON(res)
}

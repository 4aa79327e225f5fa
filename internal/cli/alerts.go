package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/shop-memory/internal/model"
)

func init() {
	alertsCmd := &cobra.Command{
		Use:   "alerts",
		Short: "List and answer price alerts",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts, newest first",
		Args:  cobra.NoArgs,
		Run:   runAlertsList,
	}
	listCmd.Flags().StringP("status", "s", "", "Filter by response: pending, accepted, rejected, ignored")

	respondCmd := &cobra.Command{
		Use:   "respond [alert-id] [accepted|rejected|ignored]",
		Short: "Answer a pending alert",
		Args:  cobra.ExactArgs(2),
		Run:   runAlertsRespond,
	}

	alertsCmd.AddCommand(listCmd, respondCmd)
	RootCmd.AddCommand(alertsCmd)
}

func runAlertsList(cmd *cobra.Command, args []string) {
	status, _ := cmd.Flags().GetString("status")

	svc, s := openService()
	defer s.Close()

	alerts, err := svc.GetUserAlerts(cmd.Context(), getUser(), model.AlertResponse(status))
	if err != nil {
		exitErr("alerts list", err)
	}
	printJSON(alerts)
}

func runAlertsRespond(cmd *cobra.Command, args []string) {
	svc, s := openService()
	defer s.Close()

	alert, err := svc.RespondToAlert(cmd.Context(), getUser(), args[0], model.AlertResponse(args[1]))
	if err != nil {
		exitErr("alerts respond", err)
	}
	printJSON(alert)
}

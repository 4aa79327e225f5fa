package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/shop-memory/internal/model"
)

func init() {
	delegateCmd := &cobra.Command{
		Use:   "delegate",
		Short: "Manage conditional delegations on watch items",
	}

	addCmd := &cobra.Command{
		Use:   "add [watch-item-id] [condition]",
		Short: "Record a delegation (stored only, never executed)",
		Args:  cobra.ExactArgs(2),
		Run:   runDelegateAdd,
	}
	addCmd.Flags().StringP("action", "a", string(model.ActionNotify), "Action: notify, reserve, auto_buy")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List delegations",
		Args:  cobra.NoArgs,
		Run:   runDelegateList,
	}
	listCmd.Flags().Bool("all", false, "Include deactivated delegations")

	rmCmd := &cobra.Command{
		Use:   "rm [delegation-id]",
		Short: "Deactivate a delegation",
		Args:  cobra.ExactArgs(1),
		Run:   runDelegateRm,
	}

	delegateCmd.AddCommand(addCmd, listCmd, rmCmd)
	RootCmd.AddCommand(delegateCmd)
}

func runDelegateAdd(cmd *cobra.Command, args []string) {
	action, _ := cmd.Flags().GetString("action")

	svc, s := openService()
	defer s.Close()

	d, err := svc.CreateDelegation(cmd.Context(), getUser(), args[0], args[1], model.DelegationAction(action))
	if err != nil {
		exitErr("delegate add", err)
	}
	printJSON(d)
}

func runDelegateList(cmd *cobra.Command, args []string) {
	all, _ := cmd.Flags().GetBool("all")

	svc, s := openService()
	defer s.Close()

	ds, err := svc.ListDelegations(cmd.Context(), getUser(), !all)
	if err != nil {
		exitErr("delegate list", err)
	}
	printJSON(ds)
}

func runDelegateRm(cmd *cobra.Command, args []string) {
	svc, s := openService()
	defer s.Close()

	if err := svc.DeactivateDelegation(cmd.Context(), getUser(), args[0]); err != nil {
		exitErr("delegate rm", err)
	}
	printJSON(map[string]string{"deactivated": args[0]})
}

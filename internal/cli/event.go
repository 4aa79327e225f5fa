package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/shop-memory/internal/model"
)

func init() {
	eventCmd := &cobra.Command{
		Use:   "event [type] [json-data]",
		Short: "Record a recall event",
		Long: "Record an interaction event. Type is one of search_query, product_view, product_reject, " +
			"product_approve, canvas_action, chat_message. Data is a JSON object given as an argument or piped via stdin.",
		Args: cobra.RangeArgs(1, 2),
		Run:  runEvent,
	}

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "List recent recall events, newest first",
		Args:  cobra.NoArgs,
		Run:   runEvents,
	}
	eventsCmd.Flags().IntP("limit", "l", 10, "Max events")

	maturityCmd := &cobra.Command{
		Use:   "maturity",
		Short: "Show the user's maturity level",
		Args:  cobra.NoArgs,
		Run:   runMaturity,
	}

	consolidateCmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Archive approved products and update the relationship state",
		Args:  cobra.NoArgs,
		Run:   runConsolidate,
	}

	RootCmd.AddCommand(eventCmd, eventsCmd, maturityCmd, consolidateCmd)
}

func runEvent(cmd *cobra.Command, args []string) {
	raw := ""
	if len(args) > 1 {
		raw = args[1]
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			raw = string(b)
		}
	}

	data := map[string]any{}
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			exitErr("event", fmt.Errorf("data must be a JSON object: %w", err))
		}
	}

	svc, s := openService()
	defer s.Close()

	res, err := svc.RecordEvent(cmd.Context(), getUser(), model.EventType(args[0]), data)
	if err != nil {
		exitErr("event", err)
	}
	printJSON(res)
}

func runEvents(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	svc, s := openService()
	defer s.Close()

	events, err := svc.RecentEvents(cmd.Context(), getUser(), limit)
	if err != nil {
		exitErr("events", err)
	}
	printJSON(events)
}

func runMaturity(cmd *cobra.Command, args []string) {
	svc, s := openService()
	defer s.Close()

	st, err := svc.GetMaturityLevel(cmd.Context(), getUser())
	if err != nil {
		exitErr("maturity", err)
	}
	printJSON(st)
}

func runConsolidate(cmd *cobra.Command, args []string) {
	svc, s := openService()
	defer s.Close()

	rep, err := svc.Consolidate(cmd.Context(), getUser())
	if err != nil {
		exitErr("consolidate", err)
	}
	printJSON(rep)
}

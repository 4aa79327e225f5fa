package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	askCmd := &cobra.Command{
		Use:   "ask",
		Short: "Talk to the memory-aware shopping assistant",
	}

	chatCmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the assistant; the exchange is recorded as a chat_message event",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskChat,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [query]",
		Short: "Infer personality indicators and preferences from a search query",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskAnalyze,
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether the text-generation backend is reachable",
		Args:  cobra.NoArgs,
		Run:   runAskStatus,
	}

	askCmd.AddCommand(chatCmd, analyzeCmd, statusCmd)
	RootCmd.AddCommand(askCmd)
}

func runAskChat(cmd *cobra.Command, args []string) {
	svc, s := openService()
	defer s.Close()

	res, err := svc.Chat(cmd.Context(), getUser(), strings.Join(args, " "), nil)
	if err != nil {
		exitErr("chat", err)
	}
	printJSON(res)
}

func runAskAnalyze(cmd *cobra.Command, args []string) {
	svc, s := openService()
	defer s.Close()

	out, err := svc.AnalyzeSearchQuery(cmd.Context(), getUser(), strings.Join(args, " "))
	if err != nil {
		exitErr("analyze", err)
	}
	printJSON(out)
}

func runAskStatus(cmd *cobra.Command, args []string) {
	svc, s := openService()
	defer s.Close()

	printJSON(svc.CheckAvailability(cmd.Context()))
}

// Package cli implements the shopmem CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/shop-memory/internal/api"
	"github.com/rcliao/shop-memory/internal/config"
	"github.com/rcliao/shop-memory/internal/llm"
	"github.com/rcliao/shop-memory/internal/logging"
	"github.com/rcliao/shop-memory/internal/pricing"
	"github.com/rcliao/shop-memory/internal/store"
)

var (
	dbPath     string
	configPath string
	userFlag   string

	loaded *config.Config
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "shopmem",
	Short: "Long-term memory for a shopping assistant",
	Long: "Per-user shopping memory: core profile, recall log, archival facts, " +
		"price watches with explainable alerts, and monthly budgets. SQLite-backed, single binary.",
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $SHOPMEM_DB or database.path from config)")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.shopmem/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "User id (default: $SHOPMEM_USER or \"default\")")
}

func loadConfig() *config.Config {
	if loaded != nil {
		return loaded
	}
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		exitErr("load config", err)
	}
	if err := cfg.Validate(); err != nil {
		exitErr("config", err)
	}
	logging.Setup(cfg.Logging, os.Stderr)
	loaded = cfg
	return cfg
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("SHOPMEM_DB"); env != "" {
		return env
	}
	return loadConfig().Database.Path
}

func getUser() string {
	if userFlag != "" {
		return userFlag
	}
	if env := os.Getenv("SHOPMEM_USER"); env != "" {
		return env
	}
	return "default"
}

func openStore() (*store.SQLiteStore, error) {
	loadConfig()
	return store.NewSQLiteStore(getDBPath())
}

// openService opens the store and builds the API over it. Callers close the
// returned store.
func openService() (*api.Service, *store.SQLiteStore) {
	cfg := loadConfig()
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}

	src, err := pricing.NewSource(cfg.Pricing)
	if err != nil {
		s.Close()
		exitErr("price source", err)
	}

	svc := api.New(s, src, llm.NewOllamaClient(cfg.LLM), api.Options{
		BudgetDefaults: store.BudgetDefaults{
			MonthlyBudget:  cfg.Budget.DefaultMonthly,
			AlertThreshold: cfg.Budget.DefaultThreshold,
		},
		CheckConcurrency: cfg.Pricing.CheckConcurrency,
	})
	return svc, s
}

func printJSON(v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

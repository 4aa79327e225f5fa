package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/rcliao/shop-memory/internal/cli"
)

func main() {
	// SHOPMEM_* and OLLAMA_BASE_URL may come from a local .env file.
	_ = godotenv.Load()

	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

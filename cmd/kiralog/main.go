// Command kiralog records, queries and analyzes AI assistant interactions.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/cmd"
)

func main() {
	// KIRALOG_* settings may come from a local .env file.
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("dotenv_load_failed")
	}

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

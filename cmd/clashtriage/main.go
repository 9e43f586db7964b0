package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/clashtriage/internal/cli"
	"github.com/JonMunkholm/clashtriage/internal/core"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	if err := cli.Execute(); err != nil {
		if core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, "Error:", core.FormatUserError(err))
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

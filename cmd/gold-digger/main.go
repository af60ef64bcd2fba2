// Package main is the entry point for the gold-digger CLI.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/EvilBit-Labs/gold-digger/internal/cli"
)

// Version is set by the build.
var Version = "dev"

func main() {
	loadDotEnv()
	os.Exit(cli.Execute(Version, os.Args[1:]))
}

// loadDotEnv pulls DATABASE_URL and friends from .env files when present.
// .env.local wins over .env; neither is required.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
	if _, err := os.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}
}

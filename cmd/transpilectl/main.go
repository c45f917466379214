package main

import (
	"os"

	"github.com/danmuck/transpilectl/internal/logging"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// .env is optional; a missing file is not an error.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("transpilectl .env load failed")
	}
	logging.ConfigureRuntime()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"wsldash/internal/logging"
)

var version = "dev"

func main() {
	logging.ConfigureRuntime()
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

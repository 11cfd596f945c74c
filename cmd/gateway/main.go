package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Gabiro3/blimp2/pkg/common"
	"github.com/Gabiro3/blimp2/pkg/gateway"
	"github.com/Gabiro3/blimp2/pkg/types"
)

func main() {
	configManager, err := common.NewConfigManager[types.AppConfig]()
	if err != nil {
		log.Fatal().Err(err).Msg("error creating config manager")
	}
	config := configManager.GetConfig()
	if config.PrettyLogs {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	if config.DebugMode {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}

	gw, err := gateway.NewGateway()
	if err != nil {
		log.Fatal().Err(err).Msg("error creating gateway service")
	}

	if err := gw.Start(); err != nil {
		log.Fatal().Err(err).Msg("gateway exited")
	}
	log.Info().Msg("Gateway stopped")
}

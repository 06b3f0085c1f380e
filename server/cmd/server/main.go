package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/CeeLav/Astrum-sub001/config"
	"github.com/CeeLav/Astrum-sub001/logging"
	"github.com/CeeLav/Astrum-sub001/server/core"
)

func main() {
	configDir := flag.String("config", ".", "Directory holding framesync.cfg.json")
	port := flag.Uint("port", 0, "Server port (overrides config)")
	flag.Parse()

	if err := config.Load(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(config.GetString("logLevel"), config.GetBool("logConsole"))

	listenPort := uint(config.GetInt("server.port"))
	if *port != 0 {
		listenPort = *port
	}

	var recorder core.FrameRecorder
	if config.GetBool("replay.enabled") {
		rec, err := core.NewReplayRecorder(config.GetString("replay.appName"), log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open replay storage")
		}
		recorder = rec
	}

	server := core.NewServer(core.ServerConfig{
		Name:        config.GetString("server.name"),
		Version:     config.GetString("server.version"),
		TickRate:    config.GetInt("sync.tickRate"),
		InputPolicy: config.InputPolicy(),
		Recorder:    recorder,
		Logger:      log,

		AutoStartPlayers: config.GetInt("sync.autoStartPlayers"),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("shutting down")
		server.Stop()
		os.Exit(0)
	}()

	if err := server.Start(listenPort); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

// Command botclient is a headless demo client: it joins a room, drives
// a scripted input pattern through the prediction controller at the
// server's tick rate and logs reconciliation events. Two instances
// against one server exercise the full sync loop end to end.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CeeLav/Astrum-sub001/config"
	"github.com/CeeLav/Astrum-sub001/logging"
	"github.com/CeeLav/Astrum-sub001/network"
	"github.com/CeeLav/Astrum-sub001/shared/messages"
	"github.com/CeeLav/Astrum-sub001/shared/netconfig"
	"github.com/CeeLav/Astrum-sub001/sim"
)

func main() {
	address := flag.String("address", "localhost:7373", "Sync server address")
	roomID := flag.String("room", "demo", "Room to join")
	playerID := flag.String("player", "", "Player id (required)")
	version := flag.String("version", "", "Client version string")
	duration := flag.Duration("duration", 30*time.Second, "How long to run")
	flag.Parse()

	if *playerID == "" {
		fmt.Fprintln(os.Stderr, "-player is required")
		os.Exit(1)
	}

	if err := config.Load("."); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(config.GetString("logLevel"), config.GetBool("logConsole"))

	world := sim.NewWorld(640, 480, 3.0)
	world.AddPlayer(*playerID, 320, 240)

	controller := network.NewClientPredictionController(network.ControllerConfig{
		RoomID:     *roomID,
		PlayerID:   *playerID,
		Simulation: simAdapter{world},
		OnCorrection: func(frame int64) {
			log.Warn().Int64("frame", frame).Msg("visible correction")
		},
		Logger: log,
	})

	client := network.NewClient(log)
	client.Connect(*address, *version, *roomID, *playerID)
	defer client.Disconnect()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(netconfig.TickInterval)
	defer ticker.Stop()
	deadline := time.After(*duration)

	var step int64
	for {
		select {
		case <-sigChan:
			log.Info().Msg("interrupted")
			return
		case <-deadline:
			state := controller.State()
			log.Info().
				Int64("authority", state.AuthorityFrame).
				Int64("prediction", state.PredictionFrame).
				Uint64("throttled", state.ThrottledSamples).
				Msg("run complete")
			_ = client.LeaveRoom()
			return
		case set := <-client.Frames():
			controller.OnFrameInputSet(set)
		case <-ticker.C:
			if client.State() != network.StateJoinedRoom {
				continue
			}
			step++
			payload := scriptedInput(step)
			if !controller.SampleLocalInput(payload) {
				continue // window full, resampled next tick
			}
			frame := controller.State().PredictionFrame
			if err := client.SendInput(messages.NewInputSample(*playerID, frame, payload)); err != nil {
				log.Warn().Err(err).Msg("input send failed")
			}
		}
	}
}

// scriptedInput walks the player in a slow circle with a periodic attack.
func scriptedInput(step int64) messages.InputPayload {
	angle := float64(step) / 40 * 2 * math.Pi
	return messages.InputPayload{
		MoveX:  math.Cos(angle),
		MoveY:  math.Sin(angle),
		Attack: step%20 == 0,
	}
}

// simAdapter lifts *sim.World's concrete Clone into the controller's
// Simulation interface.
type simAdapter struct {
	*sim.World
}

func (a simAdapter) Clone() network.Simulation {
	return simAdapter{a.World.Clone()}
}

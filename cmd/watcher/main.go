package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"TreasureWatch/internal/app"
)

func main() {
	task := flag.String("task", "watch", "Task to run: watch, check, or status")
	configPath := flag.String("config", "config.yml", "Path to the config file")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "2006-01-02 15:04:05",
	}).With().Timestamp().Logger()

	application, err := app.New(*configPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer application.Close()

	log.Info().Str("task", *task).Msg("running task")

	switch *task {
	case "watch":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		application.RunWatch(ctx)

	case "check":
		if err := application.RunCheck(); err != nil {
			log.Fatal().Err(err).Msg("check cycle failed")
		}

	case "status":
		application.PrintStatus(os.Stdout)

	default:
		log.Fatal().Str("task", *task).Msg("unknown task")
	}
}

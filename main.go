package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.
		New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

func main() {
	var path string
	flag.StringVar(&path, "config", defaultConfigFileName, "config file path")
	flag.Parse()

	log := newLogger("info")
	config, err := LoadConfig(path)
	if err != nil {
		log.Fatal().Err(err).Msg("load config error")
	}
	log = newLogger(config.LogLevel)

	server, err := NewServer(config, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init server error")
	}
	if err = server.Load(); err != nil {
		log.Fatal().Err(err).Msg("load data error")
	}
	if err = server.Listen(); err != nil {
		log.Fatal().Err(err).Msg("listen error")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		server.Stop()
	}()

	server.Serve()
}

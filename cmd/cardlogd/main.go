package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-cardlog/pkg/agent"
	"github.com/illmade-knight/go-cardlog/pkg/config"
	"github.com/illmade-knight/go-cardlog/pkg/connectivity"
	"github.com/illmade-knight/go-cardlog/pkg/reader"
	"github.com/illmade-knight/go-cardlog/pkg/scanqueue"
	"github.com/illmade-knight/go-cardlog/pkg/uploader"
)

func main() {
	cfgPath := flag.String("cfg", "cardlog.yaml", "Config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if *debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration.")
	}

	queue := scanqueue.NewFileQueue(cfg.QueuePath, logger)

	link, err := connectivity.NewPahoLink(connectivity.PahoLinkConfig{
		BrokerURL:      cfg.Link.BrokerURL,
		ClientIDPrefix: "cardlog-" + cfg.DeviceID + "-",
		Username:       cfg.Link.Username,
		Password:       cfg.Link.Password,
		CACertFile:     cfg.Link.CACert,
		ClientCertFile: cfg.Link.ClientCert,
		ClientKeyFile:  cfg.Link.ClientKey,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create link.")
	}
	defer link.Close()

	conn := connectivity.NewManager(link, connectivity.ManagerConfig{
		RetryInterval: cfg.Link.RetryInterval(),
	}, logger)

	engine := uploader.NewEngine(uploader.EngineConfig{
		EndpointURL: cfg.CollectorURL,
		DeviceID:    cfg.DeviceID,
		MaxBatch:    cfg.MaxBatch,
	}, queue, conn, logger)

	tagReader, err := newReader(cfg.Reader)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize tag reader.")
	}
	defer tagReader.Close()

	a := agent.New(agent.Config{
		DeviceID:       cfg.DeviceID,
		UploadInterval: cfg.UploadInterval(),
		PingInterval:   2 * time.Minute,
	}, queue, conn, engine, link, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.ReadLoop(ctx, tagReader)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		logger.Info().Msg("Shutdown signal received.")
		cancel()
	}()

	a.Run(ctx)
	a.Wait()
	logger.Info().Msg("Shutdown complete.")
}

func newReader(cfg config.ReaderConfig) (reader.TagReader, error) {
	switch cfg.Type {
	case "serial":
		return reader.NewSerial(cfg.Device)
	default:
		return reader.NewStub(), nil
	}
}

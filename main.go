package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/difyz9/fail2ban-web/internal/config"
	"github.com/difyz9/fail2ban-web/internal/server"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		server.Logger(config.Defaults()).Fatal().Err(err).Msg("load .env")
	}
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		server.Logger(config.Defaults()).Fatal().Err(err).Msg("load config")
	}
	logger := server.Logger(cfg)

	srv, err := server.New(cfg, *logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init console")
	}
	ln, err := net.Listen("tcp", cfg.Bind)
	if err != nil {
		logger.Fatal().Err(err).Str("bind", cfg.Bind).Msg("listen")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("api", cfg.APIURL).Str("config", cfg.Source).Msgf("console listening on http://%s", cfg.Bind)
	if err := srv.Serve(ctx, ln); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
	logger.Info().Msg("console stopped")
}

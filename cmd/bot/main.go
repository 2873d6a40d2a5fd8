package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/config"
	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/fetch"
	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/logging"
	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/service"
	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/storage"
	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/web"
	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/whatsapp"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "bot: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return runServe()
	}

	switch args[0] {
	case "serve":
		return runServe()
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runServe() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.UploadsDir, 0o755); err != nil {
		return err
	}

	allowlist := service.NewAllowList(logger, storage.NewAllowedGroupsFile(cfg.AllowedGroupsFile))
	if err := allowlist.Load(); err != nil {
		logger.Warn("allowed groups load skipped", "error", err)
	}
	presence := service.NewPresence()

	runtime, err := whatsapp.NewRuntime(cfg, logger, presence)
	if err != nil {
		return err
	}
	defer runtime.Close()

	bot := service.NewBotService(logger, cfg, runtime.Messenger(), fetch.New(cfg), allowlist, presence)
	server := web.NewServer(cfg, logger, presence)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 3)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	go func() {
		errCh <- bot.Run(ctx)
	}()
	go func() {
		errCh <- runtime.Run(ctx, bot.Enqueue)
	}()

	logger.Info("bot serving", "port", cfg.Port, "base_url", cfg.BaseURL, "owner", cfg.OwnerJID)

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		logger.Info("shutting down bot")
		if err := server.Shutdown(shutdownCtx); err != nil && !web.IsServerClosed(err) {
			return err
		}
		allowlist.Flush()
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, context.Canceled) || web.IsServerClosed(err) {
			return nil
		}
		return err
	}
}

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))
}

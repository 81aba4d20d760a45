package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/keshon/server-shh/internal/config"
	"github.com/keshon/server-shh/internal/discord"
	"github.com/keshon/server-shh/internal/storage"
)

func main() {
	log.Println("[INFO] Starting server-shh bot...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		log.Fatal("[ERR] ", err)
	}

	store, err := storage.Open(ctx, storageOptions(cfg.Storage))
	if err != nil {
		log.Fatal("[ERR] ", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Println("[ERR] Failed to close storage:", err)
		}
	}()

	bot := discord.NewBot(cfg, store)

	errCh := make(chan error, 1)
	go func() {
		if err := bot.Run(ctx); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Printf("[INFO] Received signal %s, shutting down...", s)
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Println("[ERR] Discord bot error:", err)
		}
		cancel()
	}

	log.Println("[INFO] Discord bot exited cleanly")
}

func storageOptions(s config.Storage) storage.Options {
	return storage.Options{
		Driver:           s.Driver,
		FilePath:         s.Path,
		AutoSaveInterval: s.AutoSaveInterval,
		BackupCount:      s.BackupCount,
		DatabaseURL:      s.DatabaseURL,
	}
}

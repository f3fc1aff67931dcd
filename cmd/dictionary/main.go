// cmd/dictionary/main.go imports a newline separated word list into the
// dictionary file the server reads. The list is the first argument or
// DICTIONARY_IMPORT_FILE.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/timmypass17/wordjamboree/internal/config"
	"github.com/timmypass17/wordjamboree/internal/dictionary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.Logger()

	path := cfg.Dictionary.ImportFile
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	if path == "" {
		logger.Fatal("usage: dictionary <word-list>")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dict, err := dictionary.Open(cfg.Dictionary.Path, cfg.Dictionary.CacheSize, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer dict.Close()

	if _, err := dict.ImportFile(ctx, path); err != nil {
		logger.Fatal(err)
	}
	total, err := dict.Count()
	if err != nil {
		logger.Fatal(err)
	}
	logger.Infof("%s now holds %d words", cfg.Dictionary.Path, total)
}

package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap/zapcore"

	"github.com/BioHazard786/Warpmeet/internal/commands"
	"github.com/BioHazard786/Warpmeet/internal/logging"
)

func main() {
	// Logs go to a file unless LOG_FILE says otherwise; stderr would tear the call view.
	opts := logging.Options{DefaultLevel: zapcore.WarnLevel}
	if os.Getenv("LOG_FILE") == "" {
		opts.File = filepath.Join(os.TempDir(), "warpmeet.log")
	}
	log := logging.Init(opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := commands.Execute(ctx)
	stop()
	log.Sync()
	os.Exit(code)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/jobsheet/internal/client"
	"github.com/geocoder89/jobsheet/internal/config"
	"github.com/geocoder89/jobsheet/internal/console"
	"github.com/geocoder89/jobsheet/internal/observability"
	"github.com/geocoder89/jobsheet/internal/sheet"
)

func main() {
	cfg := config.Load()

	apiURL := flag.String("api", cfg.SheetAPIURL, "base URL of the jobsheet API")
	pageURL := flag.String("page", "", "URL login links return to (defaults to the first allowed origin)")
	flag.Parse()

	redirect := *pageURL
	if redirect == "" {
		redirect = cfg.PublicURL + "/"
		if len(cfg.AllowedOrigins) > 0 {
			redirect = cfg.AllowedOrigins[0] + "/"
		}
	}

	// stdout belongs to the sheet
	log := observability.NewLoggerTo("prod", os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend := client.New(client.Config{
		BaseURL: *apiURL,
		Timeout: 10 * time.Second,
		Log:     log,
	})

	view := console.New(os.Stdout)
	ctrl := sheet.New(backend, view, redirect, log)

	unsubscribe := ctrl.Start(ctx)
	defer unsubscribe()

	repl := console.NewREPL(ctrl, view, backend, os.Stdout)
	if err := repl.Run(ctx, os.Stdin); err != nil {
		fmt.Fprintln(os.Stderr, "sheet:", err)
		os.Exit(1)
	}
}

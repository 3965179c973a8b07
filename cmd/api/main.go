package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"weshare.org/internal/expense"
	"weshare.org/internal/httpapi"
	"weshare.org/internal/obs"
	"weshare.org/internal/person"
	"weshare.org/internal/store/pg"
	"weshare.org/internal/stream"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	addr := os.Getenv("WESHARE_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	currency := os.Getenv("WESHARE_CURRENCY")
	if currency == "" {
		currency = "ZAR"
	}

	var (
		ledger  expense.Ledger
		persons person.Directory
		probe   httpapi.ReadyProbe
		store   *pg.Store
	)
	if dsn := os.Getenv("WESHARE_PG_DSN"); dsn != "" {
		var err error
		store, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		ledger = store
		persons = store
		probe = httpapi.ReadyProbe{DB: store.DB()}
	} else {
		// No DSN: serve from memory. Useful for local runs and demos.
		ledger = expense.NewInMemoryLedger()
		persons = person.NewInMemoryDirectory()
	}

	api := httpapi.New(probe, version, currency, ledger, persons, stream.New())

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting weshare-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if store != nil {
		_ = store.Close()
	}
	log.Println("Stopped")
}

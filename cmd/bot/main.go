package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yourname/credit-bot/internal/bot"
	"github.com/yourname/credit-bot/internal/config"
	"github.com/yourname/credit-bot/internal/db"
	"github.com/yourname/credit-bot/internal/ledger"
	"github.com/yourname/credit-bot/internal/report"
	"github.com/yourname/credit-bot/internal/store"
	"github.com/yourname/credit-bot/internal/store/memory"
	"github.com/yourname/credit-bot/internal/store/postgres"
)

func main() {
	cfg := config.MustLoad()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pool := db.MustConnect(ctx, cfg.DatabaseURL)
		defer pool.Close()
		if err := db.ApplyMigrations(ctx, pool, "./migrations"); err != nil {
			log.Fatalf("migrations: %v", err)
		}
		st = postgres.New(pool)
	} else {
		log.Println("DATABASE_URL not set, using in-memory store (nothing persists)")
		st = memory.New()
	}

	fees, err := ledger.FeePolicyByName(cfg.FeePolicy)
	if err != nil {
		log.Fatalf("fee policy: %v", err)
	}

	engine := ledger.New(st, ledger.Config{
		Fees:              fees,
		PrivilegedAccount: cfg.PrivilegedUser,
		ClaimAmount:       cfg.ClaimAmount,
	})
	engine.SetExporter(report.New(st, cfg.ExportDir, cfg.CurrencyName))

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("bot init: %v", err)
	}
	botAPI.Debug = false

	h := bot.NewHandler(botAPI, cfg, engine, st)
	engine.SetNotifier(h)

	// Graceful shutdown
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := botAPI.GetUpdatesChan(u)

	log.Printf("CreditBot started as @%s (fee policy %s)", botAPI.Self.UserName, fees.Name())

	for {
		select {
		case <-ctx.Done():
			log.Println("shutdown")
			return
		case upd := <-updates:
			// Each update is an independent unit of work; the ledger
			// serializes per account at the storage boundary.
			go h.HandleUpdate(ctx, upd)
		}
	}
}

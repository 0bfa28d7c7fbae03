package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	BotToken string

	// DatabaseURL empty means the in-memory store (dev/test runs).
	DatabaseURL string

	// PrivilegedUser may mint/burn and receives fee shares.
	PrivilegedUser string

	// FeePolicy: none | flat2 | split2.
	FeePolicy string

	ClaimAmount  int64
	CurrencyName string
	ExportDir    string
}

func MustLoad() Config {
	bt := os.Getenv("BOT_TOKEN")
	if bt == "" {
		log.Fatal("BOT_TOKEN is required")
	}

	priv := os.Getenv("PRIVILEGED_USER")
	if priv == "" {
		log.Fatal("PRIVILEGED_USER is required")
	}

	fee := os.Getenv("FEE_POLICY")
	if fee == "" {
		fee = "none"
	}

	claim := int64(50)
	if v := os.Getenv("CLAIM_AMOUNT"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			log.Fatalf("CLAIM_AMOUNT must be a non-negative integer, got %q", v)
		}
		claim = n
	}

	cur := os.Getenv("CURRENCY_NAME")
	if cur == "" {
		cur = "credits"
	}

	dir := os.Getenv("EXPORT_DIR")
	if dir == "" {
		dir = "."
	}

	return Config{
		BotToken:       bt,
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		PrivilegedUser: priv,
		FeePolicy:      fee,
		ClaimAmount:    claim,
		CurrencyName:   cur,
		ExportDir:      dir,
	}
}

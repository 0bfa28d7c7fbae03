// Package report renders human-readable snapshots of balances and the
// transaction log to flat files after every settlement.
package report

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/yourname/credit-bot/internal/store"
)

type Exporter struct {
	store    store.Store
	dir      string
	currency string
}

func New(st store.Store, dir, currency string) *Exporter {
	return &Exporter{store: st, dir: dir, currency: currency}
}

// ExportSnapshot rewrites balances.txt and transactions.txt. Failures
// are logged; a broken report never fails a settlement.
func (x *Exporter) ExportSnapshot(ctx context.Context) {
	if err := x.exportBalances(ctx); err != nil {
		log.Printf("export balances: %v", err)
	}
	if err := x.exportTransactions(ctx); err != nil {
		log.Printf("export transactions: %v", err)
	}
}

func (x *Exporter) exportBalances(ctx context.Context) error {
	accounts, err := x.store.ListAccounts(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	for _, a := range accounts {
		fmt.Fprintf(&b, "%s: %d %s\n", a.Username, a.Balance, x.currency)
	}
	return os.WriteFile(filepath.Join(x.dir, "balances.txt"), []byte(b.String()), 0o644)
}

func (x *Exporter) exportTransactions(ctx context.Context) error {
	txs, err := x.store.ListTransactions(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	for _, t := range txs {
		fmt.Fprintf(&b, "%s -> %s: %d %s at %s\n",
			t.Sender, t.Receiver, t.Amount, x.currency,
			t.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return os.WriteFile(filepath.Join(x.dir, "transactions.txt"), []byte(b.String()), 0o644)
}

package domain

import "time"

// Kind classifies a pending operation.
type Kind string

const (
	KindTransfer Kind = "transfer"
	KindMint     Kind = "mint"
	KindBurn     Kind = "burn"
)

// Synthetic actors recorded in the transaction log for supply changes.
const (
	MintActor = "mint"
	BurnActor = "burn"
)

type Account struct {
	Username string
	Balance  int64
}

// SettledTransaction is an append-only log row. Amount is the net amount
// actually credited to the receiver (post-fee).
type SettledTransaction struct {
	ID        int64
	Sender    string
	Receiver  string
	Amount    int64
	Timestamp time.Time
}

// PendingTransaction is a proposal awaiting confirmation or cancellation.
// Amount is gross (pre-fee). Entries are removed on resolution, never
// updated in place; ids are never reused.
type PendingTransaction struct {
	ID       int64
	Sender   string
	Receiver string
	Amount   int64
	Kind     Kind
}

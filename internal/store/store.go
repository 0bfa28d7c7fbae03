package store

import (
	"context"
	"time"

	"github.com/yourname/credit-bot/internal/domain"
)

// TransferApplication is one confirmed transfer, fully split by the fee
// policy, ready to be applied as a single atomic unit.
type TransferApplication struct {
	// PendingID, when non-zero, is the proposal this settlement
	// consumes; the driver deletes it in the same atomic unit as the
	// balance mutation.
	PendingID int64

	Sender   string
	Receiver string

	// Gross is debited from the sender; Net is credited to the
	// receiver; PrivilegedShare goes to PrivilegedAccount; Burn is
	// added to the burned-supply counter without crediting anyone.
	Gross             int64
	Net               int64
	PrivilegedAccount string
	PrivilegedShare   int64
	Burn              int64

	Timestamp time.Time
}

// SupplyApplication is a confirmed mint or burn.
type SupplyApplication struct {
	// PendingID as in TransferApplication; 0 means no proposal backs
	// this application (direct grants).
	PendingID int64

	Username  string
	Amount    int64
	Timestamp time.Time
}

// Store is the unified storage interface for the ledger. All methods
// declared explicitly rather than via embedded sub-interfaces.
//
// Settlement-shaped operations (ApplyTransfer, ApplyMint, ApplyBurn,
// ApplyClaim, TakePending) must be atomic in every driver: either the
// whole mutation commits or none of it does, and the sufficient-funds
// check happens inside the same unit as the debit. Reads-then-writes on
// a single username must be linearizable.
type Store interface {
	// Balances. GetBalance returns 0 for an unknown username; absence
	// is not an error. AdjustBalance creates the account on first
	// credit and adds to it thereafter (one row per username).
	GetBalance(ctx context.Context, username string) (int64, error)
	// LookupAccount is the explicit form: a missing row is
	// ledger.ErrNotFound.
	LookupAccount(ctx context.Context, username string) (domain.Account, error)
	AdjustBalance(ctx context.Context, username string, delta int64) error
	TotalSupply(ctx context.Context) (int64, error)
	TopBalances(ctx context.Context, n int) ([]domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)

	// Transaction log, append-only. Recent is newest first, ties by id
	// descending; an offset past the end yields an empty slice.
	RecentTransactions(ctx context.Context, limit, offset int) ([]domain.SettledTransaction, error)
	ListTransactions(ctx context.Context) ([]domain.SettledTransaction, error)

	// Pending table. CreatePending assigns the next id. GetPending is a
	// read-only peek. TakePending atomically reads and deletes; a
	// missing id (including one already taken by a concurrent caller)
	// returns ledger.ErrNotFound.
	CreatePending(ctx context.Context, p domain.PendingTransaction) (int64, error)
	GetPending(ctx context.Context, id int64) (domain.PendingTransaction, error)
	TakePending(ctx context.Context, id int64) (domain.PendingTransaction, error)

	// Settlement applications. Each returns the id of the appended
	// SettledTransaction. When a PendingID is set, the proposal is
	// consumed in the same atomic unit: a concurrent resolver already
	// holding it means ledger.ErrNotFound, and a driver failure rolls
	// the whole unit back with the proposal intact. ApplyTransfer and
	// ApplyBurn fail with ledger.ErrInsufficientFunds when the debit
	// would go negative; that outcome still consumes the proposal but
	// moves no funds. ApplyClaim fails with ledger.ErrAlreadyClaimed
	// unless the account balance is zero, and the check and the credit
	// are one atomic step.
	ApplyTransfer(ctx context.Context, t TransferApplication) (int64, error)
	ApplyMint(ctx context.Context, m SupplyApplication) (int64, error)
	ApplyBurn(ctx context.Context, b SupplyApplication) (int64, error)
	ApplyClaim(ctx context.Context, username string, amount int64, ts time.Time) (int64, error)

	// Cumulative burned supply (fee burns plus explicit burns).
	BurnedSupply(ctx context.Context) (int64, error)

	// Delivery addresses for the notification sink. DeliveryAddress
	// reports ok=false for an unknown username.
	SetDeliveryAddress(ctx context.Context, username string, chatID int64) error
	DeliveryAddress(ctx context.Context, username string) (chatID int64, ok bool, err error)
}

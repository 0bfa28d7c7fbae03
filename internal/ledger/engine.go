package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/yourname/credit-bot/internal/domain"
	"github.com/yourname/credit-bot/internal/store"
)

// Authorizer decides whether an identity may mint and burn (and, by
// extension, receives fee shares).
type Authorizer interface {
	Authorized(username string) bool
}

// PrivilegedUser authorizes exactly one configured username.
type PrivilegedUser string

func (p PrivilegedUser) Authorized(username string) bool {
	return username != "" && username == string(p)
}

// Proposal is a created pending transaction, returned to the transport
// layer for presentation (confirm/cancel buttons).
type Proposal struct {
	ID       int64
	Kind     domain.Kind
	Sender   string
	Receiver string
	Amount   int64
}

// Settlement is the structured outcome of a confirmed proposal.
type Settlement struct {
	TxID     int64
	Kind     domain.Kind
	Sender   string
	Receiver string

	Gross           int64
	Net             int64
	PrivilegedShare int64
	Burned          int64

	Timestamp time.Time
}

// Notifier pushes settlement and cancellation notices to the parties.
// Implementations look up delivery addresses themselves; a missing
// address must not fail settlement.
type Notifier interface {
	NotifySettled(ctx context.Context, s Settlement)
	NotifyCanceled(ctx context.Context, p Proposal)
}

// Exporter re-renders the reporting snapshot after a balance change.
type Exporter interface {
	ExportSnapshot(ctx context.Context)
}

// Config carries the engine's policy knobs.
type Config struct {
	Fees FeePolicy

	// PrivilegedAccount receives fee shares and is the only identity
	// allowed to propose mint and burn.
	PrivilegedAccount string

	// ClaimAmount is the one-time grant for zero-balance accounts.
	ClaimAmount int64
}

// Engine is the settlement coordinator: the sole path that mutates
// balances and the transaction log.
type Engine struct {
	store    store.Store
	fees     FeePolicy
	auth     Authorizer
	priv     string
	claim    int64
	notifier Notifier
	exporter Exporter
}

func New(st store.Store, cfg Config) *Engine {
	return &Engine{
		store: st,
		fees:  cfg.Fees,
		auth:  PrivilegedUser(cfg.PrivilegedAccount),
		priv:  cfg.PrivilegedAccount,
		claim: cfg.ClaimAmount,
	}
}

// SetNotifier wires the notification sink. Optional.
func (e *Engine) SetNotifier(n Notifier) { e.notifier = n }

// SetExporter wires the reporting sink. Optional.
func (e *Engine) SetExporter(x Exporter) { e.exporter = x }

// ProposeTransfer validates funds and creates a pending transfer. The
// balance is checked again at confirmation; this check only keeps
// obviously unfunded proposals out of the table.
func (e *Engine) ProposeTransfer(ctx context.Context, sender, receiver string, amount int64) (Proposal, error) {
	if amount <= 0 {
		return Proposal{}, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	bal, err := e.store.GetBalance(ctx, sender)
	if err != nil {
		return Proposal{}, err
	}
	if bal < amount {
		return Proposal{}, fmt.Errorf("%w: balance %d, need %d", ErrInsufficientFunds, bal, amount)
	}
	return e.propose(ctx, domain.PendingTransaction{
		Sender:   sender,
		Receiver: receiver,
		Amount:   amount,
		Kind:     domain.KindTransfer,
	})
}

// ProposeMint creates a pending mint for the privileged identity.
func (e *Engine) ProposeMint(ctx context.Context, actor string, amount int64) (Proposal, error) {
	if !e.auth.Authorized(actor) {
		return Proposal{}, ErrUnauthorized
	}
	if amount <= 0 {
		return Proposal{}, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	return e.propose(ctx, domain.PendingTransaction{
		Sender: actor,
		Amount: amount,
		Kind:   domain.KindMint,
	})
}

// ProposeBurn creates a pending burn for the privileged identity. The
// proposer's balance must cover the burn, both now and at confirmation.
func (e *Engine) ProposeBurn(ctx context.Context, actor string, amount int64) (Proposal, error) {
	if !e.auth.Authorized(actor) {
		return Proposal{}, ErrUnauthorized
	}
	if amount <= 0 {
		return Proposal{}, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	bal, err := e.store.GetBalance(ctx, actor)
	if err != nil {
		return Proposal{}, err
	}
	if bal < amount {
		return Proposal{}, fmt.Errorf("%w: balance %d, need %d", ErrInsufficientFunds, bal, amount)
	}
	return e.propose(ctx, domain.PendingTransaction{
		Sender: actor,
		Amount: amount,
		Kind:   domain.KindBurn,
	})
}

func (e *Engine) propose(ctx context.Context, p domain.PendingTransaction) (Proposal, error) {
	id, err := e.store.CreatePending(ctx, p)
	if err != nil {
		return Proposal{}, err
	}
	return Proposal{
		ID:       id,
		Kind:     p.Kind,
		Sender:   p.Sender,
		Receiver: p.Receiver,
		Amount:   p.Amount,
	}, nil
}

// Confirm settles a pending transaction. The entry is read here but
// consumed by the store inside the settlement's own atomic unit, so it
// resolves exactly once even against a concurrent Confirm or Cancel
// (the loser observes ErrNotFound), and a storage failure leaves the
// proposal intact. Funds are re-validated in that same unit; a proposal
// that lost its funding settles nothing, the entry is still consumed,
// and the caller sees ErrInsufficientFunds.
func (e *Engine) Confirm(ctx context.Context, id int64) (Settlement, error) {
	p, err := e.store.GetPending(ctx, id)
	if err != nil {
		return Settlement{}, err
	}

	now := time.Now().UTC()
	var s Settlement
	switch p.Kind {
	case domain.KindMint:
		txID, err := e.store.ApplyMint(ctx, store.SupplyApplication{
			PendingID: p.ID,
			Username:  p.Sender,
			Amount:    p.Amount,
			Timestamp: now,
		})
		if err != nil {
			return Settlement{}, err
		}
		s = Settlement{
			TxID:      txID,
			Kind:      p.Kind,
			Sender:    domain.MintActor,
			Receiver:  p.Sender,
			Gross:     p.Amount,
			Net:       p.Amount,
			Timestamp: now,
		}

	case domain.KindBurn:
		txID, err := e.store.ApplyBurn(ctx, store.SupplyApplication{
			PendingID: p.ID,
			Username:  p.Sender,
			Amount:    p.Amount,
			Timestamp: now,
		})
		if err != nil {
			return Settlement{}, err
		}
		s = Settlement{
			TxID:      txID,
			Kind:      p.Kind,
			Sender:    p.Sender,
			Receiver:  domain.BurnActor,
			Gross:     p.Amount,
			Burned:    p.Amount,
			Timestamp: now,
		}

	default:
		net, priv, burn := e.fees.Apply(p.Amount)
		txID, err := e.store.ApplyTransfer(ctx, store.TransferApplication{
			PendingID:         p.ID,
			Sender:            p.Sender,
			Receiver:          p.Receiver,
			Gross:             p.Amount,
			Net:               net,
			PrivilegedAccount: e.priv,
			PrivilegedShare:   priv,
			Burn:              burn,
			Timestamp:         now,
		})
		if err != nil {
			return Settlement{}, err
		}
		s = Settlement{
			TxID:            txID,
			Kind:            p.Kind,
			Sender:          p.Sender,
			Receiver:        p.Receiver,
			Gross:           p.Amount,
			Net:             net,
			PrivilegedShare: priv,
			Burned:          burn,
			Timestamp:       now,
		}
	}

	if e.notifier != nil {
		e.notifier.NotifySettled(ctx, s)
	}
	if e.exporter != nil {
		e.exporter.ExportSnapshot(ctx)
	}
	return s, nil
}

// Cancel resolves a pending transaction without moving funds.
func (e *Engine) Cancel(ctx context.Context, id int64) (Proposal, error) {
	p, err := e.store.TakePending(ctx, id)
	if err != nil {
		return Proposal{}, err
	}
	prop := Proposal{
		ID:       p.ID,
		Kind:     p.Kind,
		Sender:   p.Sender,
		Receiver: p.Receiver,
		Amount:   p.Amount,
	}
	if e.notifier != nil {
		e.notifier.NotifyCanceled(ctx, prop)
	}
	return prop, nil
}

// Claim grants the one-time starting amount to a zero-balance account.
func (e *Engine) Claim(ctx context.Context, username string) (Settlement, error) {
	if e.claim <= 0 {
		return Settlement{}, fmt.Errorf("%w: claims disabled", ErrInvalidAmount)
	}
	now := time.Now().UTC()
	txID, err := e.store.ApplyClaim(ctx, username, e.claim, now)
	if err != nil {
		return Settlement{}, err
	}
	s := Settlement{
		TxID:      txID,
		Kind:      domain.KindMint,
		Sender:    domain.MintActor,
		Receiver:  username,
		Gross:     e.claim,
		Net:       e.claim,
		Timestamp: now,
	}
	if e.exporter != nil {
		e.exporter.ExportSnapshot(ctx)
	}
	return s, nil
}

// Balance returns the account balance, 0 for unknown usernames.
func (e *Engine) Balance(ctx context.Context, username string) (int64, error) {
	return e.store.GetBalance(ctx, username)
}

// Lookup is the explicit form: an unknown username is ErrNotFound.
func (e *Engine) Lookup(ctx context.Context, username string) (int64, error) {
	acc, err := e.store.LookupAccount(ctx, username)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

func (e *Engine) TotalSupply(ctx context.Context) (int64, error) {
	return e.store.TotalSupply(ctx)
}

func (e *Engine) BurnedSupply(ctx context.Context) (int64, error) {
	return e.store.BurnedSupply(ctx)
}

func (e *Engine) Top(ctx context.Context, n int) ([]domain.Account, error) {
	if n <= 0 {
		n = 10
	}
	return e.store.TopBalances(ctx, n)
}

func (e *Engine) Recent(ctx context.Context, limit, offset int) ([]domain.SettledTransaction, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return e.store.RecentTransactions(ctx, limit, offset)
}

// Package memory is an in-process Store driver. It backs tests and
// token-only dev runs; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yourname/credit-bot/internal/domain"
	"github.com/yourname/credit-bot/internal/ledger"
	"github.com/yourname/credit-bot/internal/store"
)

// Store guards all state with one mutex, which trivially satisfies the
// per-account linearizability and compare-and-delete requirements.
type Store struct {
	mu sync.Mutex

	balances map[string]int64
	txs      []domain.SettledTransaction
	nextTxID int64

	pending       map[int64]domain.PendingTransaction
	nextPendingID int64

	burned int64

	addresses map[string]int64
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		balances:      make(map[string]int64),
		pending:       make(map[int64]domain.PendingTransaction),
		addresses:     make(map[string]int64),
		nextTxID:      1,
		nextPendingID: 1,
	}
}

func (s *Store) GetBalance(_ context.Context, username string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[username], nil
}

func (s *Store) LookupAccount(_ context.Context, username string) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bal, ok := s.balances[username]
	if !ok {
		return domain.Account{}, fmt.Errorf("%w: user %s", ledger.ErrNotFound, username)
	}
	return domain.Account{Username: username, Balance: bal}, nil
}

func (s *Store) AdjustBalance(_ context.Context, username string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[username] += delta
	return nil
}

func (s *Store) TotalSupply(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum int64
	for _, b := range s.balances {
		sum += b
	}
	return sum, nil
}

func (s *Store) TopBalances(_ context.Context, n int) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := s.accountsLocked()
	if n < len(accounts) {
		accounts = accounts[:n]
	}
	return accounts, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountsLocked(), nil
}

// accountsLocked returns all accounts ordered by balance descending,
// ties by username ascending. Caller holds mu.
func (s *Store) accountsLocked() []domain.Account {
	accounts := make([]domain.Account, 0, len(s.balances))
	for u, b := range s.balances {
		accounts = append(accounts, domain.Account{Username: u, Balance: b})
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Balance != accounts[j].Balance {
			return accounts[i].Balance > accounts[j].Balance
		}
		return accounts[i].Username < accounts[j].Username
	})
	return accounts
}

func (s *Store) RecentTransactions(_ context.Context, limit, offset int) ([]domain.SettledTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// txs is append-ordered; ids increase monotonically, so newest
	// first is simply the reverse.
	n := len(s.txs)
	if offset >= n {
		return nil, nil
	}
	out := make([]domain.SettledTransaction, 0, limit)
	for i := n - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.txs[i])
	}
	return out, nil
}

func (s *Store) ListTransactions(_ context.Context) ([]domain.SettledTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.SettledTransaction, len(s.txs))
	copy(out, s.txs)
	return out, nil
}

func (s *Store) CreatePending(_ context.Context, p domain.PendingTransaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.nextPendingID
	s.nextPendingID++
	s.pending[p.ID] = p
	return p.ID, nil
}

func (s *Store) GetPending(_ context.Context, id int64) (domain.PendingTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[id]
	if !ok {
		return domain.PendingTransaction{}, fmt.Errorf("%w: pending transaction %d", ledger.ErrNotFound, id)
	}
	return p, nil
}

func (s *Store) TakePending(_ context.Context, id int64) (domain.PendingTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[id]
	if !ok {
		return domain.PendingTransaction{}, fmt.Errorf("%w: pending transaction %d", ledger.ErrNotFound, id)
	}
	delete(s.pending, id)
	return p, nil
}

func (s *Store) ApplyTransfer(_ context.Context, t store.TransferApplication) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.consumePendingLocked(t.PendingID); err != nil {
		return 0, err
	}
	if s.balances[t.Sender] < t.Gross {
		// The proposal stays consumed; only the funds stay put.
		return 0, fmt.Errorf("%w: balance %d, need %d", ledger.ErrInsufficientFunds, s.balances[t.Sender], t.Gross)
	}
	s.balances[t.Sender] -= t.Gross
	s.balances[t.Receiver] += t.Net
	if t.PrivilegedShare > 0 {
		s.balances[t.PrivilegedAccount] += t.PrivilegedShare
	}
	s.burned += t.Burn
	return s.appendLocked(t.Sender, t.Receiver, t.Net, t.Timestamp), nil
}

func (s *Store) ApplyMint(_ context.Context, m store.SupplyApplication) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.consumePendingLocked(m.PendingID); err != nil {
		return 0, err
	}
	s.balances[m.Username] += m.Amount
	return s.appendLocked(domain.MintActor, m.Username, m.Amount, m.Timestamp), nil
}

func (s *Store) ApplyBurn(_ context.Context, b store.SupplyApplication) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.consumePendingLocked(b.PendingID); err != nil {
		return 0, err
	}
	if s.balances[b.Username] < b.Amount {
		return 0, fmt.Errorf("%w: balance %d, need %d", ledger.ErrInsufficientFunds, s.balances[b.Username], b.Amount)
	}
	s.balances[b.Username] -= b.Amount
	s.burned += b.Amount
	return s.appendLocked(b.Username, domain.BurnActor, b.Amount, b.Timestamp), nil
}

// consumePendingLocked deletes the backing proposal, if any. Caller
// holds mu, so the consumption and the settlement are one atomic step.
func (s *Store) consumePendingLocked(id int64) error {
	if id == 0 {
		return nil
	}
	if _, ok := s.pending[id]; !ok {
		return fmt.Errorf("%w: pending transaction %d", ledger.ErrNotFound, id)
	}
	delete(s.pending, id)
	return nil
}

func (s *Store) ApplyClaim(_ context.Context, username string, amount int64, ts time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.balances[username] != 0 {
		return 0, fmt.Errorf("%w: user %s", ledger.ErrAlreadyClaimed, username)
	}
	s.balances[username] += amount
	return s.appendLocked(domain.MintActor, username, amount, ts), nil
}

// appendLocked writes one log row and assigns the next id. Caller
// holds mu.
func (s *Store) appendLocked(sender, receiver string, amount int64, ts time.Time) int64 {
	id := s.nextTxID
	s.nextTxID++
	s.txs = append(s.txs, domain.SettledTransaction{
		ID:        id,
		Sender:    sender,
		Receiver:  receiver,
		Amount:    amount,
		Timestamp: ts,
	})
	return id
}

func (s *Store) BurnedSupply(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.burned, nil
}

func (s *Store) SetDeliveryAddress(_ context.Context, username string, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[username] = chatID
	return nil
}

func (s *Store) DeliveryAddress(_ context.Context, username string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.addresses[username]
	return id, ok, nil
}

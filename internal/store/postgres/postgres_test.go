package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yourname/credit-bot/internal/store"
)

func TestLockOrderCoversAllPartiesSorted(t *testing.T) {
	tests := []struct {
		name string
		app  store.TransferApplication
		want []string
	}{
		{
			"plain transfer",
			store.TransferApplication{Sender: "bob", Receiver: "alice"},
			[]string{"alice", "bob"},
		},
		{
			"fee share adds the privileged account",
			store.TransferApplication{
				Sender: "bob", Receiver: "alice",
				PrivilegedAccount: "admin", PrivilegedShare: 1,
			},
			[]string{"admin", "alice", "bob"},
		},
		{
			"zero share leaves the privileged account unlocked",
			store.TransferApplication{
				Sender: "alice", Receiver: "bob",
				PrivilegedAccount: "admin",
			},
			[]string{"alice", "bob"},
		},
		{
			"self transfer locks once",
			store.TransferApplication{Sender: "alice", Receiver: "alice"},
			[]string{"alice"},
		},
		{
			"privileged sender deduplicated",
			store.TransferApplication{
				Sender: "admin", Receiver: "bob",
				PrivilegedAccount: "admin", PrivilegedShare: 2,
			},
			[]string{"admin", "bob"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lockOrder(tt.app))
		})
	}
}

// Opposite-direction transfers must derive the same lock order, which
// is what rules out the hold-and-wait cycle between their sessions.
func TestLockOrderSymmetric(t *testing.T) {
	ab := lockOrder(store.TransferApplication{Sender: "alice", Receiver: "bob"})
	ba := lockOrder(store.TransferApplication{Sender: "bob", Receiver: "alice"})
	assert.Equal(t, ab, ba)
}

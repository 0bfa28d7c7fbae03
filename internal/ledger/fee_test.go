package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeePolicyApply(t *testing.T) {
	tests := []struct {
		name   string
		policy FeePolicy
		gross  int64
		net    int64
		priv   int64
		burn   int64
	}{
		{"identity passes through", IdentityFee(), 100, 100, 0, 0},
		{"identity single unit", IdentityFee(), 1, 1, 0, 0},
		{"flat2 on 100", FlatFee(), 100, 98, 1, 1},
		{"flat2 truncates below 100", FlatFee(), 99, 99, 0, 0},
		{"flat2 on 250", FlatFee(), 250, 246, 2, 2},
		{"split2 on 100", SplitFee(), 100, 98, 1, 1},
		{"split2 odd fee unit to privileged", SplitFee(), 150, 147, 2, 1},
		{"split2 on 99", SplitFee(), 99, 98, 1, 0},
		{"split2 tiny amount no fee", SplitFee(), 49, 49, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net, priv, burn := tt.policy.Apply(tt.gross)
			assert.Equal(t, tt.net, net, "net")
			assert.Equal(t, tt.priv, priv, "privileged")
			assert.Equal(t, tt.burn, burn, "burn")
		})
	}
}

func TestFeePolicyConservation(t *testing.T) {
	policies := []FeePolicy{IdentityFee(), FlatFee(), SplitFee()}
	for _, p := range policies {
		for gross := int64(1); gross <= 1000; gross++ {
			net, priv, burn := p.Apply(gross)
			require.Equal(t, gross, net+priv+burn, "policy %s, gross %d", p.Name(), gross)
			require.GreaterOrEqual(t, net, int64(0))
			require.GreaterOrEqual(t, priv, int64(0))
			require.GreaterOrEqual(t, burn, int64(0))
		}
	}
}

func TestFeePolicyByName(t *testing.T) {
	for _, name := range []string{"none", "flat2", "split2", ""} {
		_, err := FeePolicyByName(name)
		assert.NoError(t, err, name)
	}

	_, err := FeePolicyByName("bogus")
	assert.Error(t, err)
}

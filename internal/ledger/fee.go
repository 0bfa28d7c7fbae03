package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FeePolicy splits a gross transfer amount into the net credited to the
// receiver, a share for the privileged account, and a burned share.
// Shares are truncated toward zero; the remainder stays with the
// receiver, so net + privileged + burned == gross always holds.
type FeePolicy struct {
	name           string
	burnRate       decimal.Decimal
	privilegedRate decimal.Decimal

	// combined: compute one fee on the summed rate, then halve it,
	// instead of truncating each share independently.
	combined bool
}

// IdentityFee passes the gross amount through untouched.
func IdentityFee() FeePolicy {
	return FeePolicy{name: "none"}
}

// FlatFee takes 1% burn and 1% privileged share, each truncated.
func FlatFee() FeePolicy {
	return FeePolicy{
		name:           "flat2",
		burnRate:       decimal.NewFromFloat(0.01),
		privilegedRate: decimal.NewFromFloat(0.01),
	}
}

// SplitFee takes a single 2% fee, truncated, then halves it between
// burn and the privileged account (privileged gets the odd unit).
func SplitFee() FeePolicy {
	return FeePolicy{
		name:           "split2",
		burnRate:       decimal.NewFromFloat(0.01),
		privilegedRate: decimal.NewFromFloat(0.01),
		combined:       true,
	}
}

// FeePolicyByName selects a policy from its configuration name.
func FeePolicyByName(name string) (FeePolicy, error) {
	switch name {
	case "", "none":
		return IdentityFee(), nil
	case "flat2":
		return FlatFee(), nil
	case "split2":
		return SplitFee(), nil
	default:
		return FeePolicy{}, fmt.Errorf("unknown fee policy %q", name)
	}
}

func (p FeePolicy) Name() string {
	if p.name == "" {
		return "none"
	}
	return p.name
}

// Apply splits gross. IntPart truncates toward zero, which keeps the
// identity net+privileged+burned == gross exact on integer balances.
func (p FeePolicy) Apply(gross int64) (net, privileged, burned int64) {
	g := decimal.NewFromInt(gross)
	if p.combined {
		fee := g.Mul(p.burnRate.Add(p.privilegedRate)).IntPart()
		burned = fee / 2
		privileged = fee - burned
	} else {
		burned = g.Mul(p.burnRate).IntPart()
		privileged = g.Mul(p.privilegedRate).IntPart()
	}
	net = gross - privileged - burned
	return net, privileged, burned
}

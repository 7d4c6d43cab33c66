package gaspolicy

import (
	"math/big"

	"github.com/hyperlane-xyz/relayer/internal/store"
)

// Enforcer evaluates an ordered Policy list against simulated deliveries,
// grounded on the cost-accounting style of a tracker that keeps running
// totals and compares them against a configured threshold before passing a
// transaction through.
type Enforcer struct {
	Policies []Policy
}

// NewEnforcer builds an Enforcer from an ordered policy list. The zero
// value (no policies) withholds every message, matching the "no entry
// matched" behavior below rather than silently passing.
func NewEnforcer(policies []Policy) *Enforcer {
	return &Enforcer{Policies: policies}
}

// Evaluate walks the ordered policy list, applying the first entry whose
// matching list matches message.
func (e *Enforcer) Evaluate(message *store.HyperlaneMessage, gasLimit uint64, payment *store.GasPaymentTotal) Decision {
	for _, p := range e.Policies {
		if !p.Matching.Matches(message) {
			continue
		}
		return p.evaluate(gasLimit, payment)
	}
	return Decision{Pass: false}
}

func (p Policy) evaluate(gasLimit uint64, payment *store.GasPaymentTotal) Decision {
	switch p.Kind {
	case KindNone:
		return Decision{Pass: true}

	case KindMinimum:
		total := cumulativePayment(payment)
		min := p.MinimumPayment
		if min == nil {
			min = big.NewInt(0)
		}
		if total.Cmp(min) >= 0 {
			return Decision{Pass: true}
		}
		return Decision{Pass: false}

	case KindOnChainFeeQuoting:
		totalGas := cumulativeGasAmount(payment)
		required := requiredGasAmount(gasLimit, p.GasFraction)
		if totalGas.Cmp(required) < 0 {
			return Decision{Pass: false}
		}
		capped := totalGas.Uint64()
		if totalGas.IsUint64() && capped < gasLimit {
			return Decision{Pass: true, CappedGasLimit: &capped}
		}
		return Decision{Pass: true}

	default:
		return Decision{Pass: false}
	}
}

func cumulativePayment(t *store.GasPaymentTotal) *big.Int {
	if t == nil || t.CumulativePayment == nil {
		return big.NewInt(0)
	}
	return t.CumulativePayment.Big()
}

func cumulativeGasAmount(t *store.GasPaymentTotal) *big.Int {
	if t == nil || t.CumulativeGasAmount == nil {
		return big.NewInt(0)
	}
	return t.CumulativeGasAmount.Big()
}

// requiredGasAmount computes ceil(gasLimit * gasFraction) using integer
// arithmetic scaled by 1e9 to avoid float precision loss near the quorum
// boundary.
func requiredGasAmount(gasLimit uint64, gasFraction float64) *big.Int {
	if gasFraction <= 0 {
		return big.NewInt(0)
	}
	const scale = 1_000_000_000
	scaledFraction := big.NewInt(int64(gasFraction * scale))
	limit := new(big.Int).SetUint64(gasLimit)
	num := new(big.Int).Mul(limit, scaledFraction)
	denom := big.NewInt(scale)
	q, r := new(big.Int).QuoRem(num, denom, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

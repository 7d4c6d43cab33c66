// Copyright 2026 Hyperlane Relayer Contributors

package store

import "math/big"

// addBig adds two decimal-string-backed BigInt values using math/big,
// returning the result re-wrapped as a BigInt.
func addBig(a, b *BigInt) *BigInt {
	x, ok := new(big.Int).SetString(a.String(), 10)
	if !ok {
		x = big.NewInt(0)
	}
	y, ok := new(big.Int).SetString(b.String(), 10)
	if !ok {
		y = big.NewInt(0)
	}
	return NewBigInt(new(big.Int).Add(x, y).String())
}

package web3

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/params"
)

// ErrFeeCapExceeded is returned when anchoring would need a fee cap above
// the configured maximum.
var ErrFeeCapExceeded = errors.New("fee cap exceeds configured maximum")

// FeeCaps are EIP-1559 execution fee caps.
type FeeCaps struct {
	TipCap *big.Int // maxPriorityFeePerGas
	FeeCap *big.Int // maxFeePerGas
}

var (
	minTipBump    = big.NewInt(2 * params.GWei)
	minFeeCapBump = big.NewInt(5 * params.GWei)
)

// replacement caps grow by at least 12.5%
const (
	bumpNum = 1125
	bumpDen = 1000
)

// feePolicy prices anchoring transactions. A nil maxFeeCap is unbounded.
type feePolicy struct {
	cli       Client
	maxFeeCap *big.Int
}

// initial returns caps of 2*baseFee + tip, with the tip suggested by the
// node.
func (p feePolicy) initial(ctx context.Context) (FeeCaps, error) {
	tip, err := p.cli.SuggestGasTipCap(ctx)
	if err != nil {
		return FeeCaps{}, fmt.Errorf("suggest tip: %w", err)
	}
	feeCap, err := p.target(ctx, tip)
	if err != nil {
		return FeeCaps{}, err
	}
	return p.bounded(FeeCaps{TipCap: tip, FeeCap: feeCap})
}

// bump raises both caps enough for the node to accept a replacement of a
// pending transaction with the same nonce.
func (p feePolicy) bump(ctx context.Context, fees FeeCaps) (FeeCaps, error) {
	suggested, err := p.cli.SuggestGasTipCap(ctx)
	if err != nil {
		return FeeCaps{}, fmt.Errorf("suggest tip: %w", err)
	}
	tip := maxBig(
		mulFrac(fees.TipCap, bumpNum, bumpDen),
		new(big.Int).Add(fees.TipCap, minTipBump),
		suggested,
	)
	target, err := p.target(ctx, tip)
	if err != nil {
		return FeeCaps{}, err
	}
	feeCap := maxBig(
		mulFrac(fees.FeeCap, bumpNum, bumpDen),
		new(big.Int).Add(fees.FeeCap, minFeeCapBump),
		target,
	)
	return p.bounded(FeeCaps{TipCap: tip, FeeCap: feeCap})
}

// target returns 2*baseFee + tip over the latest header.
func (p feePolicy) target(ctx context.Context, tip *big.Int) (*big.Int, error) {
	h, err := p.cli.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("header by number: %w", err)
	}
	if h.BaseFee == nil {
		return nil, fmt.Errorf("no base fee in latest header (pre-london?)")
	}
	t := new(big.Int).Lsh(h.BaseFee, 1)
	return t.Add(t, tip), nil
}

func (p feePolicy) bounded(fees FeeCaps) (FeeCaps, error) {
	if p.maxFeeCap != nil && fees.FeeCap.Cmp(p.maxFeeCap) > 0 {
		return FeeCaps{}, fmt.Errorf("%w: %s > %s wei", ErrFeeCapExceeded, fees.FeeCap, p.maxFeeCap)
	}
	return fees, nil
}

func mulFrac(x *big.Int, num, den int64) *big.Int {
	if x == nil {
		return nil
	}
	r := new(big.Int).Mul(x, big.NewInt(num))
	return r.Div(r, big.NewInt(den))
}

func maxBig(vals ...*big.Int) *big.Int {
	var best *big.Int
	for _, v := range vals {
		if v != nil && (best == nil || v.Cmp(best) > 0) {
			best = v
		}
	}
	if best == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(best)
}

func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(params.GWei))
}

package web3

import (
	"context"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestFees(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	p := feePolicy{cli: newFakeClient()}

	fees, err := p.initial(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(fees.TipCap.Cmp(gwei(1)), qt.Equals, 0)
	c.Assert(fees.FeeCap.Cmp(gwei(21)), qt.Equals, 0)

	// tip: max(1.125, 1+2, 1) gwei; cap: max(23.625, 21+5, 2*10+3) gwei
	bumped, err := p.bump(ctx, fees)
	c.Assert(err, qt.IsNil)
	c.Assert(bumped.TipCap.Cmp(gwei(3)), qt.Equals, 0)
	c.Assert(bumped.FeeCap.Cmp(gwei(26)), qt.Equals, 0)
	// the input caps are not modified
	c.Assert(fees.TipCap.Cmp(gwei(1)), qt.Equals, 0)
}

func TestFeesMaxCap(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	p := feePolicy{cli: newFakeClient(), maxFeeCap: gwei(25)}

	fees, err := p.initial(ctx)
	c.Assert(err, qt.IsNil)
	_, err = p.bump(ctx, fees)
	c.Assert(err, qt.ErrorIs, ErrFeeCapExceeded)

	p.maxFeeCap = gwei(20)
	_, err = p.initial(ctx)
	c.Assert(err, qt.ErrorIs, ErrFeeCapExceeded)
}

func TestBigHelpers(t *testing.T) {
	c := qt.New(t)
	c.Assert(mulFrac(big.NewInt(1000), bumpNum, bumpDen).Int64(), qt.Equals, int64(1125))
	c.Assert(mulFrac(nil, 1, 1), qt.IsNil)

	three := big.NewInt(3)
	got := maxBig(nil, three, big.NewInt(2))
	c.Assert(got.Int64(), qt.Equals, int64(3))
	got.SetInt64(7)
	c.Assert(three.Int64(), qt.Equals, int64(3))
	c.Assert(maxBig().Sign(), qt.Equals, 0)
}

package market

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func freshTotals() *TotalsBasic {
	return &TotalsBasic{
		BaseSupplyIndex:     new(big.Int).Set(baseIndexScale),
		BaseBorrowIndex:     new(big.Int).Set(baseIndexScale),
		TrackingSupplyIndex: big.NewInt(0),
		TrackingBorrowIndex: big.NewInt(0),
		TotalSupplyBase:     big.NewInt(0),
		TotalBorrowBase:     big.NewInt(0),
		LastAccrualTime:     1_000,
	}
}

func TestAccrueAdvancesIndices(t *testing.T) {
	f := newFixture(defaultTestParams(), RateParams{
		SupplySlopeLow: big.NewInt(1_000_000_000),
		BorrowBase:     big.NewInt(2_000_000_000),
		Kink:           factor(0.8),
	})
	totals := freshTotals()
	totals.TotalSupplyBase = big.NewInt(1_000_000_000_000)
	totals.TotalBorrowBase = big.NewInt(500_000_000_000)

	// Utilization 0.5: supply rate 5e8/s, borrow rate 2e9/s.
	require.NoError(t, f.engine.accrueInternal(totals, 1_100))

	require.Equal(t, "1000000050000000", totals.BaseSupplyIndex.String())
	require.Equal(t, "1000000200000000", totals.BaseBorrowIndex.String())
	require.Equal(t, uint64(1_100), totals.LastAccrualTime)
}

func TestAccrueIsIdempotentAtSameTimestamp(t *testing.T) {
	f := newFixture(defaultTestParams(), RateParams{
		BorrowBase: big.NewInt(1_000_000_000),
		Kink:       factor(0.8),
	})
	totals := freshTotals()
	totals.TotalSupplyBase = big.NewInt(1_000_000)
	totals.TotalBorrowBase = big.NewInt(500_000)

	require.NoError(t, f.engine.accrueInternal(totals, 2_000))
	snapshot := totals.Clone()
	require.NoError(t, f.engine.accrueInternal(totals, 2_000))
	require.Equal(t, snapshot, totals)

	// Time moving backwards is also a no-op rather than an error.
	require.NoError(t, f.engine.accrueInternal(totals, 1_500))
	require.Equal(t, snapshot, totals)
}

func TestFirstAccrualAnchorsFreshLedger(t *testing.T) {
	f := newFixture(defaultTestParams(), RateParams{
		BorrowBase: big.NewInt(1_000_000_000),
		Kink:       factor(0.8),
	})
	require.NoError(t, f.listCollateral())

	// A brand-new ledger carries a zero accrual time; the first touch pins it
	// to the clock instead of minting interest for the span before the market
	// existed.
	require.NoError(t, f.engine.Supply(testBob, testBase, baseUnits(1000)))
	totals, err := f.engine.TotalsBasic()
	require.NoError(t, err)
	require.Equal(t, uint64(1_700_000_000), totals.LastAccrualTime)
	require.Equal(t, baseIndexScale, totals.BaseSupplyIndex)
	require.Equal(t, baseIndexScale, totals.BaseBorrowIndex)

	// With the indices still at their starting value, a borrow drawn in the
	// same instant owes exactly what was withdrawn.
	require.NoError(t, f.engine.Supply(testAlice, testCollateral, wethUnits(1000)))
	require.NoError(t, f.engine.Withdraw(testAlice, testBase, baseUnits(500)))
	debt, err := f.engine.BorrowBalanceOf(testAlice)
	require.NoError(t, err)
	require.Equal(t, baseUnits(500), debt)
}

func TestAccrueIndicesNeverDecrease(t *testing.T) {
	f := newFixture(defaultTestParams(), RateParams{
		SupplySlopeLow:  big.NewInt(1_000_000_000),
		SupplySlopeHigh: big.NewInt(10_000_000_000),
		BorrowBase:      big.NewInt(500_000_000),
		BorrowSlopeLow:  big.NewInt(2_000_000_000),
		Kink:            factor(0.8),
	})
	totals := freshTotals()
	totals.TotalSupplyBase = big.NewInt(10_000_000_000)
	totals.TotalBorrowBase = big.NewInt(9_000_000_000)

	now := uint64(1_000)
	for i := 0; i < 50; i++ {
		prevSupply := new(big.Int).Set(totals.BaseSupplyIndex)
		prevBorrow := new(big.Int).Set(totals.BaseBorrowIndex)
		now += 37
		require.NoError(t, f.engine.accrueInternal(totals, now))
		require.GreaterOrEqual(t, totals.BaseSupplyIndex.Cmp(prevSupply), 0)
		require.GreaterOrEqual(t, totals.BaseBorrowIndex.Cmp(prevBorrow), 0)
	}
}

func TestAccrueRejectsOversizedTimestamp(t *testing.T) {
	f := newFixture(defaultTestParams(), RateParams{Kink: factor(0.8)})
	totals := freshTotals()
	err := f.engine.accrueInternal(totals, maxTimestamp+1)
	require.ErrorIs(t, err, ErrTimestampTooLarge)

	require.NoError(t, f.engine.accrueInternal(totals, maxTimestamp))
	require.Equal(t, maxTimestamp, totals.LastAccrualTime)
}

func TestTrackingIndexRewardFloor(t *testing.T) {
	params := defaultTestParams()
	params.BaseMinForRewards = big.NewInt(1_000_000)
	params.TrackingSupplySpeed = new(big.Int).Set(trackingIndexScale) // 1 unit/sec
	params.TrackingBorrowSpeed = new(big.Int).Set(trackingIndexScale)
	f := newFixture(params, RateParams{Kink: factor(0.8)})

	// Below the floor: tracking indices stand still while interest time passes.
	totals := freshTotals()
	totals.TotalSupplyBase = big.NewInt(999_999)
	require.NoError(t, f.engine.accrueInternal(totals, 1_100))
	require.Equal(t, int64(0), totals.TrackingSupplyIndex.Int64())
	require.Equal(t, int64(0), totals.TrackingBorrowIndex.Int64())

	// At the floor the supply side advances; the borrow side stays below it.
	totals = freshTotals()
	totals.TotalSupplyBase = big.NewInt(1_000_000_000_000)
	require.NoError(t, f.engine.accrueInternal(totals, 1_100))
	// speed * elapsed * baseScale / totalSupply = 1e15*100*1e6/1e12 = 1e11.
	require.Equal(t, "100000000000", totals.TrackingSupplyIndex.String())
	require.Equal(t, int64(0), totals.TrackingBorrowIndex.Int64())
}

func TestAccrueRejectsUnrepresentableTotals(t *testing.T) {
	f := newFixture(defaultTestParams(), RateParams{
		SupplySlopeLow: big.NewInt(1_000_000_000),
		BorrowBase:     big.NewInt(1_000_000_000),
		Kink:           factor(0.8),
	})
	totals := freshTotals()
	// Principal at the uint64 ceiling: any index growth pushes its present
	// value out of range and must fail instead of silently wrapping.
	totals.TotalSupplyBase = new(big.Int).Set(maxUint64)
	totals.TotalBorrowBase = new(big.Int).Set(maxUint64)

	err := f.engine.accrueInternal(totals, 2_000)
	require.ErrorIs(t, err, ErrInvalidUInt64)
	// The failed accrual must not move the indices.
	require.Equal(t, baseIndexScale, totals.BaseSupplyIndex)
	require.Equal(t, uint64(1_000), totals.LastAccrualTime)
}

func TestUtilization(t *testing.T) {
	f := newFixture(defaultTestParams(), RateParams{Kink: factor(0.8)})
	totals := freshTotals()

	// No supply means zero utilization, not a division blowup.
	totals.TotalBorrowBase = big.NewInt(123)
	require.Equal(t, int64(0), f.engine.utilizationOf(totals).Int64())

	totals.TotalSupplyBase = big.NewInt(1_000)
	totals.TotalBorrowBase = big.NewInt(250)
	require.Equal(t, factor(0.25), f.engine.utilizationOf(totals))
}

func TestRateModelKink(t *testing.T) {
	model := NewInterestRateModel(RateParams{
		SupplySlopeLow:  big.NewInt(1_000),
		SupplySlopeHigh: big.NewInt(10_000),
		BorrowBase:      big.NewInt(500),
		BorrowSlopeLow:  big.NewInt(2_000),
		BorrowSlopeHigh: big.NewInt(20_000),
		Kink:            factor(0.8),
	})

	// Below the kink only the low slope applies.
	require.Equal(t, int64(500), model.SupplyRate(factor(0.5)).Int64())
	require.Equal(t, int64(1_500), model.BorrowRate(factor(0.5)).Int64())

	// Above the kink the high slope applies to the excess only.
	require.Equal(t, int64(800+1_000), model.SupplyRate(factor(0.9)).Int64())
	require.Equal(t, int64(500+1_600+2_000), model.BorrowRate(factor(0.9)).Int64())
}

func TestSupplyRateReserveCut(t *testing.T) {
	model := NewInterestRateModel(RateParams{
		SupplySlopeLow: big.NewInt(1_000),
		Kink:           factor(0.8),
		ReserveRate:    factor(0.1),
	})
	// 10% of the supply rate is withheld for reserves.
	require.Equal(t, int64(450), model.SupplyRate(factor(0.5)).Int64())
}

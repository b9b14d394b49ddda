package market

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var testCollateral2 = common.HexToAddress("0x7000000000000000000000000000000000000007")

// underwaterFixture sets up bob as the base supplier and alice as a borrower
// whose collateral has crashed below the liquidation margin.
func underwaterFixture(t *testing.T, debtDollars int64, crashPrice *big.Int) *testFixture {
	t.Helper()
	f := newFixture(defaultTestParams(), RateParams{Kink: factor(0.8)})
	require.NoError(t, f.listCollateral())
	require.NoError(t, f.engine.Supply(testBob, testBase, baseUnits(200)))
	require.NoError(t, f.engine.Supply(testAlice, testCollateral, wethUnits(100))) // 0.1 WETH
	require.NoError(t, f.engine.Withdraw(testAlice, testBase, baseUnits(debtDollars)))
	f.oracle.SetPrice(testCollateral, crashPrice)
	return f
}

func TestAbsorbWritesOffBadDebt(t *testing.T) {
	// $100 debt against 0.1 WETH crashed to $100/WETH: $10 of collateral.
	f := underwaterFixture(t, 100, usd(100))
	f.emitter.events = nil

	require.NoError(t, f.engine.Absorb(testCarol, []common.Address{testAlice}))

	// The account is made whole: no debt, no collateral, clean bitmap.
	debt, err := f.engine.BorrowBalanceOf(testAlice)
	require.NoError(t, err)
	require.Equal(t, int64(0), debt.Int64())
	collateral, err := f.engine.CollateralBalanceOf(testAlice, testCollateral)
	require.NoError(t, err)
	require.Equal(t, int64(0), collateral.Int64())
	user, err := f.engine.UserBasic(testAlice)
	require.NoError(t, err)
	require.Equal(t, uint16(0), user.AssetsIn)

	totals, err := f.engine.TotalsBasic()
	require.NoError(t, err)
	require.Equal(t, int64(0), totals.TotalBorrowBase.Int64())

	// The written-off debt comes out of reserves; the seized collateral
	// becomes protocol-owned.
	reserves, err := f.engine.Reserves()
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Neg(baseUnits(100)), reserves)
	collateralReserves, err := f.engine.CollateralReserves(testCollateral)
	require.NoError(t, err)
	require.Equal(t, wethUnits(100), collateralReserves)

	points, err := f.engine.LiquidatorPoints(testCarol)
	require.NoError(t, err)
	require.Equal(t, uint64(1), points.NumAbsorbs)
	require.Equal(t, uint64(1), points.NumAbsorbed)
	require.Equal(t, big.NewInt(300_000), points.ApproxSpend)

	evs := f.emitter.all()
	require.Len(t, evs, 2)
	seize, ok := evs[0].(AbsorbCollateralEvent)
	require.True(t, ok)
	require.Equal(t, wethUnits(100), seize.SeizedAmount)
	// 0.1 WETH at $100 with a 0.93 liquidation factor is $9.30.
	require.Equal(t, big.NewInt(930_000_000), seize.UsdValue)
	debtEv, ok := evs[1].(AbsorbDebtEvent)
	require.True(t, ok)
	require.Equal(t, baseUnits(100), debtEv.BasePaidOut)
	require.Equal(t, usd(100), debtEv.UsdValue)
}

func TestAbsorbLeavesSurplusAsSupply(t *testing.T) {
	// $80 debt against 0.1 WETH at $1000: $100 of collateral, liquidatable
	// (0.7 * 100 < 80) but worth more than the debt after the 0.93 haircut.
	f := underwaterFixture(t, 80, usd(1000))
	f.emitter.events = nil

	require.NoError(t, f.engine.Absorb(testCarol, []common.Address{testAlice}))

	// Recovered $93 pays off $80 and leaves $13 supplied to the account.
	balance, err := f.engine.BalanceOf(testAlice)
	require.NoError(t, err)
	require.Equal(t, baseUnits(13), balance)
	debt, err := f.engine.BorrowBalanceOf(testAlice)
	require.NoError(t, err)
	require.Equal(t, int64(0), debt.Int64())

	evs := f.emitter.all()
	require.Len(t, evs, 3)
	_, ok := evs[0].(AbsorbCollateralEvent)
	require.True(t, ok)
	debtEv, ok := evs[1].(AbsorbDebtEvent)
	require.True(t, ok)
	require.Equal(t, baseUnits(93), debtEv.BasePaidOut)
	transfer, ok := evs[2].(TransferEvent)
	require.True(t, ok)
	require.Equal(t, testAlice, transfer.To)
	require.Equal(t, baseUnits(13), transfer.Amount)
}

func TestAbsorbRejectsHealthyAccountAndAbortsBatch(t *testing.T) {
	f := underwaterFixture(t, 100, usd(100))

	// bob is a plain supplier and not liquidatable; the whole batch fails.
	err := f.engine.Absorb(testCarol, []common.Address{testAlice, testBob})
	require.ErrorIs(t, err, ErrNotLiquidatable)

	// alice is untouched even though she was processed first.
	debt, err := f.engine.BorrowBalanceOf(testAlice)
	require.NoError(t, err)
	require.Equal(t, baseUnits(100), debt)
	collateral, err := f.engine.CollateralBalanceOf(testAlice, testCollateral)
	require.NoError(t, err)
	require.Equal(t, wethUnits(100), collateral)

	points, err := f.engine.LiquidatorPoints(testCarol)
	require.NoError(t, err)
	require.Equal(t, uint64(0), points.NumAbsorbs)
}

func TestAbsorbRequiresTargets(t *testing.T) {
	f := newFixture(defaultTestParams(), RateParams{Kink: factor(0.8)})
	require.Error(t, f.engine.Absorb(testCarol, nil))
}

func TestAbsorbHonoursPause(t *testing.T) {
	f := underwaterFixture(t, 100, usd(100))
	require.NoError(t, f.engine.Pause(testGovernor, false, false, false, true, false))
	err := f.engine.Absorb(testCarol, []common.Address{testAlice})
	require.ErrorIs(t, err, ErrPaused)
}

func TestAbsorbSeizesInListingOrder(t *testing.T) {
	f := newFixture(defaultTestParams(), RateParams{Kink: factor(0.8)})
	require.NoError(t, f.listCollateral())
	require.NoError(t, f.engine.AddAsset(AssetConfig{
		Asset:                     testCollateral2,
		PriceFeed:                 testCollateral2,
		Scale:                     factor(1),
		BorrowCollateralFactor:    factor(0.65),
		LiquidateCollateralFactor: factor(0.7),
		LiquidationFactor:         factor(0.93),
		SupplyCap:                 big.NewInt(0),
	}))
	f.oracle.SetPrice(testCollateral2, usd(1000))

	require.NoError(t, f.engine.Supply(testBob, testBase, baseUnits(500)))
	require.NoError(t, f.engine.Supply(testAlice, testCollateral, wethUnits(100)))
	require.NoError(t, f.engine.Supply(testAlice, testCollateral2, wethUnits(100)))
	require.NoError(t, f.engine.Withdraw(testAlice, testBase, baseUnits(150)))

	f.oracle.SetPrice(testCollateral, usd(100))
	f.oracle.SetPrice(testCollateral2, usd(100))
	f.emitter.events = nil

	require.NoError(t, f.engine.Absorb(testCarol, []common.Address{testAlice}))

	evs := f.emitter.all()
	require.Len(t, evs, 3)
	first, ok := evs[0].(AbsorbCollateralEvent)
	require.True(t, ok)
	require.Equal(t, testCollateral, first.Asset)
	second, ok := evs[1].(AbsorbCollateralEvent)
	require.True(t, ok)
	require.Equal(t, testCollateral2, second.Asset)
	_, ok = evs[2].(AbsorbDebtEvent)
	require.True(t, ok)
}

package market

import "math/big"

// accrueInternal advances the interest and tracking indices to now. Calling
// it twice at the same timestamp is a no-op after the first call.
func (e *Engine) accrueInternal(totals *TotalsBasic, now uint64) error {
	if now > maxTimestamp {
		return ErrTimestampTooLarge
	}
	// A fresh ledger anchors to the current clock; interest never spans the
	// interval before the market existed.
	if totals.LastAccrualTime == 0 {
		totals.LastAccrualTime = now
		return nil
	}
	if now <= totals.LastAccrualTime {
		return nil
	}
	elapsed := new(big.Int).SetUint64(now - totals.LastAccrualTime)

	utilization := e.utilizationOf(totals)
	supplyRate := e.rates.SupplyRate(utilization)
	borrowRate := e.rates.BorrowRate(utilization)

	supplyFactor := new(big.Int).Add(factorScale, new(big.Int).Mul(supplyRate, elapsed))
	borrowFactor := new(big.Int).Add(factorScale, new(big.Int).Mul(borrowRate, elapsed))

	newSupplyIndex, err := checkUint64(mulFactor(totals.BaseSupplyIndex, supplyFactor))
	if err != nil {
		return err
	}
	newBorrowIndex, err := checkUint64(mulFactor(totals.BaseBorrowIndex, borrowFactor))
	if err != nil {
		return err
	}

	// The principal totals must stay representable as present values at the
	// advanced indices, otherwise downstream conversions would overflow.
	if _, err := checkUint64(presentValueSupply(newSupplyIndex, totals.TotalSupplyBase)); err != nil {
		return err
	}
	if _, err := checkUint64(presentValueBorrow(newBorrowIndex, totals.TotalBorrowBase)); err != nil {
		return err
	}

	totals.BaseSupplyIndex = newSupplyIndex
	totals.BaseBorrowIndex = newBorrowIndex

	// Tracking indices only advance while the principal totals clear the
	// reward floor; intervals spent below it earn nothing.
	if totals.TotalSupplyBase.Cmp(e.params.BaseMinForRewards) >= 0 {
		delta := new(big.Int).Mul(e.params.TrackingSupplySpeed, elapsed)
		delta.Mul(delta, e.params.BaseScale)
		delta.Quo(delta, totals.TotalSupplyBase)
		next, err := checkUint64(new(big.Int).Add(totals.TrackingSupplyIndex, delta))
		if err != nil {
			return err
		}
		totals.TrackingSupplyIndex = next
	}
	if totals.TotalBorrowBase.Cmp(e.params.BaseMinForRewards) >= 0 {
		delta := new(big.Int).Mul(e.params.TrackingBorrowSpeed, elapsed)
		delta.Mul(delta, e.params.BaseScale)
		delta.Quo(delta, totals.TotalBorrowBase)
		next, err := checkUint64(new(big.Int).Add(totals.TrackingBorrowIndex, delta))
		if err != nil {
			return err
		}
		totals.TrackingBorrowIndex = next
	}

	totals.LastAccrualTime = now
	return nil
}

// utilizationOf computes the pool utilization in 1e18 fixed point from the
// present values of the base totals. Utilization is zero while nothing is
// supplied.
func (e *Engine) utilizationOf(totals *TotalsBasic) *big.Int {
	supply := presentValueSupply(totals.BaseSupplyIndex, totals.TotalSupplyBase)
	if supply.Sign() == 0 {
		return big.NewInt(0)
	}
	borrow := presentValueBorrow(totals.BaseBorrowIndex, totals.TotalBorrowBase)
	return divFactor(borrow, supply)
}

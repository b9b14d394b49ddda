package market

import "math/big"

// RateParams holds the kinked interest-rate curve parameters. All values are
// 1e18 fixed point; rates are expressed per second.
type RateParams struct {
	SupplyBase      *big.Int
	SupplySlopeLow  *big.Int
	SupplySlopeHigh *big.Int
	BorrowBase      *big.Int
	BorrowSlopeLow  *big.Int
	BorrowSlopeHigh *big.Int
	// Kink is the utilization threshold where the high slope takes over.
	Kink *big.Int
	// ReserveRate is the share of supply interest withheld for reserves.
	ReserveRate *big.Int
	// ReserveScaling optionally rescales the supply rate after the reserve
	// cut. Zero means no rescaling.
	ReserveScaling *big.Int
}

// InterestRateModel evaluates per-second supply and borrow rates from pool
// utilization. The model is immutable for the engine's lifetime.
type InterestRateModel struct {
	params RateParams
}

// NewInterestRateModel constructs a model, defaulting nil parameters to zero.
func NewInterestRateModel(params RateParams) *InterestRateModel {
	cloned := RateParams{
		SupplyBase:      cloneOrZero(params.SupplyBase),
		SupplySlopeLow:  cloneOrZero(params.SupplySlopeLow),
		SupplySlopeHigh: cloneOrZero(params.SupplySlopeHigh),
		BorrowBase:      cloneOrZero(params.BorrowBase),
		BorrowSlopeLow:  cloneOrZero(params.BorrowSlopeLow),
		BorrowSlopeHigh: cloneOrZero(params.BorrowSlopeHigh),
		Kink:            cloneOrZero(params.Kink),
		ReserveRate:     cloneOrZero(params.ReserveRate),
		ReserveScaling:  cloneOrZero(params.ReserveScaling),
	}
	if cloned.ReserveScaling.Sign() == 0 {
		cloned.ReserveScaling = new(big.Int).Set(factorScale)
	}
	return &InterestRateModel{params: cloned}
}

// SupplyRate returns the per-second supply rate at the given utilization.
func (m *InterestRateModel) SupplyRate(utilization *big.Int) *big.Int {
	if m == nil {
		return big.NewInt(0)
	}
	rate := new(big.Int).Add(m.params.SupplyBase, m.slope(utilization, m.params.SupplySlopeLow, m.params.SupplySlopeHigh))
	rate = mulFactor(rate, new(big.Int).Sub(factorScale, m.params.ReserveRate))
	return mulFactor(rate, m.params.ReserveScaling)
}

// BorrowRate returns the per-second borrow rate at the given utilization.
func (m *InterestRateModel) BorrowRate(utilization *big.Int) *big.Int {
	if m == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Add(m.params.BorrowBase, m.slope(utilization, m.params.BorrowSlopeLow, m.params.BorrowSlopeHigh))
}

func (m *InterestRateModel) slope(utilization, low, high *big.Int) *big.Int {
	if utilization == nil || utilization.Sign() <= 0 {
		return big.NewInt(0)
	}
	kink := m.params.Kink
	belowKink := utilization
	if utilization.Cmp(kink) > 0 {
		belowKink = kink
	}
	rate := mulFactor(low, belowKink)
	if utilization.Cmp(kink) > 0 {
		excess := new(big.Int).Sub(utilization, kink)
		rate.Add(rate, mulFactor(high, excess))
	}
	return rate
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

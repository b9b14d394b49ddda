package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TotalsBasic returns a copy of the global base-asset totals.
func (e *Engine) TotalsBasic() (*TotalsBasic, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.view()
	if err != nil {
		return nil, err
	}
	totals, err := v.totals()
	if err != nil {
		return nil, err
	}
	return totals.Clone(), nil
}

// TotalsCollateral returns a copy of the collateral totals for an asset.
func (e *Engine) TotalsCollateral(asset common.Address) (*TotalsCollateral, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.assetByAddr[asset]; !ok {
		return nil, ErrUnknownAsset
	}
	v, err := e.view()
	if err != nil {
		return nil, err
	}
	totals, err := v.totalsCollateral(asset)
	if err != nil {
		return nil, err
	}
	return totals.Clone(), nil
}

// UserBasic returns a copy of the account's base position record.
func (e *Engine) UserBasic(account common.Address) (*UserBasic, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.view()
	if err != nil {
		return nil, err
	}
	user, err := v.user(account)
	if err != nil {
		return nil, err
	}
	return user.Clone(), nil
}

// LiquidatorPoints returns a copy of the absorber's incentive bookkeeping.
func (e *Engine) LiquidatorPoints(account common.Address) (*LiquidatorPoints, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.view()
	if err != nil {
		return nil, err
	}
	points, err := v.points(account)
	if err != nil {
		return nil, err
	}
	return points.Clone(), nil
}

// BalanceOf returns the account's supplied base balance in present-value
// terms, or zero for a net borrower.
func (e *Engine) BalanceOf(account common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.view()
	if err != nil {
		return nil, err
	}
	totals, err := v.totals()
	if err != nil {
		return nil, err
	}
	user, err := v.user(account)
	if err != nil {
		return nil, err
	}
	if user.Principal.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	return presentValueSupply(totals.BaseSupplyIndex, user.Principal), nil
}

// BorrowBalanceOf returns the account's debt in present-value terms, or zero
// for a net supplier.
func (e *Engine) BorrowBalanceOf(account common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.view()
	if err != nil {
		return nil, err
	}
	totals, err := v.totals()
	if err != nil {
		return nil, err
	}
	user, err := v.user(account)
	if err != nil {
		return nil, err
	}
	if user.Principal.Sign() >= 0 {
		return big.NewInt(0), nil
	}
	return presentValueBorrow(totals.BaseBorrowIndex, new(big.Int).Neg(user.Principal)), nil
}

// CollateralBalanceOf returns the account's balance of one collateral asset.
func (e *Engine) CollateralBalanceOf(account, asset common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.assetByAddr[asset]; !ok {
		return nil, ErrUnknownAsset
	}
	v, err := e.view()
	if err != nil {
		return nil, err
	}
	record, err := v.userCollateral(account, asset)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(record.Balance), nil
}

// Utilization returns the current pool utilization in 1e18 fixed point.
func (e *Engine) Utilization() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.view()
	if err != nil {
		return nil, err
	}
	totals, err := v.totals()
	if err != nil {
		return nil, err
	}
	return e.utilizationOf(totals), nil
}

// SupplyRate evaluates the per-second supply rate at a utilization.
func (e *Engine) SupplyRate(utilization *big.Int) *big.Int {
	return e.rates.SupplyRate(utilization)
}

// BorrowRate evaluates the per-second borrow rate at a utilization.
func (e *Engine) BorrowRate(utilization *big.Int) *big.Int {
	return e.rates.BorrowRate(utilization)
}

// HasPermission reports whether the operator may act on the owner's position.
func (e *Engine) HasPermission(owner, operator common.Address) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.view()
	if err != nil {
		return false, err
	}
	return e.hasPermission(v, owner, operator)
}

// PauseFlags returns the current pause bitset.
func (e *Engine) PauseFlags() (uint8, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.view()
	if err != nil {
		return 0, err
	}
	totals, err := v.totals()
	if err != nil {
		return 0, err
	}
	return totals.PauseFlags, nil
}

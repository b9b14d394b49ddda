package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// liquidityFor computes the account's signed liquidity in 1e8 price terms.
// With liquidation=false collateral is weighted by the borrow collateral
// factor (borrow-capacity view); with liquidation=true by the liquidate
// collateral factor (liquidation-margin view). Prices are read live from the
// oracle on every call; no solvency state is cached.
func (e *Engine) liquidityFor(v *stateView, totals *TotalsBasic, account common.Address, liquidation bool) (*big.Int, error) {
	user, err := v.user(account)
	if err != nil {
		return nil, err
	}
	basePrice, err := e.price(e.params.BaseToken)
	if err != nil {
		return nil, err
	}
	balance := presentValue(totals, user.Principal)
	liquidity := new(big.Int).Mul(balance, basePrice)
	liquidity = divFloor(liquidity, e.params.BaseScale)

	for _, cfg := range e.assets {
		if !isInAsset(user.AssetsIn, cfg.Offset) {
			continue
		}
		record, err := v.userCollateral(account, cfg.Asset)
		if err != nil {
			return nil, err
		}
		if record.Balance.Sign() == 0 {
			continue
		}
		price, err := e.price(cfg.Asset)
		if err != nil {
			return nil, err
		}
		value := mulPrice(record.Balance, price, cfg.Scale)
		factor := cfg.BorrowCollateralFactor
		if liquidation {
			factor = cfg.LiquidateCollateralFactor
		}
		liquidity.Add(liquidity, mulFactor(value, factor))
	}
	return liquidity, nil
}

func (e *Engine) isBorrowCollateralized(v *stateView, totals *TotalsBasic, account common.Address) (bool, error) {
	liquidity, err := e.liquidityFor(v, totals, account, false)
	if err != nil {
		return false, err
	}
	return liquidity.Sign() >= 0, nil
}

func (e *Engine) isLiquidatable(v *stateView, totals *TotalsBasic, account common.Address) (bool, error) {
	liquidity, err := e.liquidityFor(v, totals, account, true)
	if err != nil {
		return false, err
	}
	return liquidity.Sign() < 0, nil
}

// IsBorrowCollateralized reports whether the account's collateral, weighted
// by the borrow collateral factors, covers its debt.
func (e *Engine) IsBorrowCollateralized(account common.Address) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.view()
	if err != nil {
		return false, err
	}
	totals, err := v.totals()
	if err != nil {
		return false, err
	}
	return e.isBorrowCollateralized(v, totals, account)
}

// IsLiquidatable reports whether the account has crossed its liquidation
// margin.
func (e *Engine) IsLiquidatable(account common.Address) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.view()
	if err != nil {
		return false, err
	}
	totals, err := v.totals()
	if err != nil {
		return false, err
	}
	return e.isLiquidatable(v, totals, account)
}

// LiquidationMargin returns the signed liquidate-factor liquidity in 1e8
// price terms. Negative means the account is liquidatable.
func (e *Engine) LiquidationMargin(account common.Address) (*big.Int, error) {
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
	return e.liquidityFor(v, totals, account, true)
}

package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// reservesOf computes the protocol's base-asset surplus: what it holds minus
// what it owes suppliers net of outstanding borrows.
func (e *Engine) reservesOf(v *stateView, totals *TotalsBasic) (*big.Int, error) {
	holding, err := v.holding(e.params.BaseToken)
	if err != nil {
		return nil, err
	}
	supply := presentValueSupply(totals.BaseSupplyIndex, totals.TotalSupplyBase)
	borrow := presentValueBorrow(totals.BaseBorrowIndex, totals.TotalBorrowBase)
	reserves := new(big.Int).Sub(holding, supply)
	reserves.Add(reserves, borrow)
	return reserves, nil
}

// Reserves returns the protocol-owned base-asset surplus. The figure can be
// negative after bad-debt absorption.
func (e *Engine) Reserves() (*big.Int, error) {
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
	return e.reservesOf(v, totals)
}

// CollateralReserves returns the protocol-owned balance of a collateral asset
// beyond what is owed to accounts.
func (e *Engine) CollateralReserves(asset common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.view()
	if err != nil {
		return nil, err
	}
	return e.collateralReservesOf(v, asset)
}

func (e *Engine) collateralReservesOf(v *stateView, asset common.Address) (*big.Int, error) {
	if _, ok := e.assetByAddr[asset]; !ok {
		return nil, ErrUnknownAsset
	}
	holding, err := v.holding(asset)
	if err != nil {
		return nil, err
	}
	totalsCol, err := v.totalsCollateral(asset)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Sub(holding, totalsCol.TotalSupplyAsset), nil
}

// QuoteCollateral prices a collateral purchase: the base amount is converted
// to value terms and divided by the store-front discounted asset price.
func (e *Engine) QuoteCollateral(asset common.Address, baseAmount *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quoteCollateral(asset, baseAmount)
}

func (e *Engine) quoteCollateral(asset common.Address, baseAmount *big.Int) (*big.Int, error) {
	idx, ok := e.assetByAddr[asset]
	if !ok {
		return nil, ErrUnknownAsset
	}
	cfg := e.assets[idx]
	basePrice, err := e.price(e.params.BaseToken)
	if err != nil {
		return nil, err
	}
	assetPrice, err := e.price(asset)
	if err != nil {
		return nil, err
	}
	discounted := mulFactor(assetPrice, e.params.StoreFrontPriceFactor)
	value := mulPrice(baseAmount, basePrice, e.params.BaseScale)
	return divPrice(value, discounted, cfg.Scale), nil
}

// BuyCollateral sells protocol-owned collateral for base asset at the
// discounted oracle price while reserves sit below target. The base paid in
// goes straight to reserves.
func (e *Engine) BuyCollateral(buyer, asset common.Address, minCollateralOut, baseAmountIn *big.Int, recipient common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if baseAmountIn == nil || baseAmountIn.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	if minCollateralOut == nil {
		minCollateralOut = big.NewInt(0)
	}
	v, err := e.view()
	if err != nil {
		return nil, err
	}
	totals, err := v.totals()
	if err != nil {
		return nil, err
	}
	if err := guardAction(totals, actionBuy); err != nil {
		return nil, err
	}
	if err := e.accrueInternal(totals, e.now()); err != nil {
		return nil, err
	}
	reserves, err := e.reservesOf(v, totals)
	if err != nil {
		return nil, err
	}
	if reserves.Cmp(e.params.TargetReserves) >= 0 {
		return nil, ErrNotForSale
	}
	collateralOut, err := e.quoteCollateral(asset, baseAmountIn)
	if err != nil {
		return nil, err
	}
	if collateralOut.Cmp(minCollateralOut) < 0 {
		return nil, ErrTooMuchSlippage
	}
	available, err := e.collateralReservesOf(v, asset)
	if err != nil {
		return nil, err
	}
	if available.Cmp(collateralOut) < 0 {
		return nil, ErrInsufficientReserves
	}

	baseHolding, err := v.holding(e.params.BaseToken)
	if err != nil {
		return nil, err
	}
	v.setHolding(e.params.BaseToken, new(big.Int).Add(baseHolding, baseAmountIn))
	assetHolding, err := v.holding(asset)
	if err != nil {
		return nil, err
	}
	v.setHolding(asset, new(big.Int).Sub(assetHolding, collateralOut))

	if err := e.transferer.TransferIn(e.params.BaseToken, buyer, baseAmountIn); err != nil {
		return nil, err
	}
	if err := e.transferer.TransferOut(asset, recipient, collateralOut); err != nil {
		return nil, err
	}
	if err := v.commit(); err != nil {
		return nil, err
	}
	e.emitter.Emit(BuyCollateralEvent{
		Buyer:         buyer,
		Asset:         asset,
		BaseAmount:    new(big.Int).Set(baseAmountIn),
		CollateralOut: new(big.Int).Set(collateralOut),
	})
	return collateralOut, nil
}

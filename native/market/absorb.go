package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"baselend/core/events"
)

// Absorb liquidates the listed accounts in order. Each account's entire
// collateral is seized at the liquidation-factor haircut, the proceeds are
// applied against its debt, and any residual debt is written off against
// protocol reserves. A non-liquidatable account anywhere in the batch aborts
// the whole call.
func (e *Engine) Absorb(absorber common.Address, accounts []common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(accounts) == 0 {
		return errInvalidAmount
	}
	v, err := e.view()
	if err != nil {
		return err
	}
	totals, err := v.totals()
	if err != nil {
		return err
	}
	if err := guardAction(totals, actionAbsorb); err != nil {
		return err
	}
	if err := e.accrueInternal(totals, e.now()); err != nil {
		return err
	}
	basePrice, err := e.price(e.params.BaseToken)
	if err != nil {
		return err
	}

	var pending []events.Event
	for _, account := range accounts {
		evs, err := e.absorbAccount(v, totals, absorber, account, basePrice)
		if err != nil {
			return err
		}
		pending = append(pending, evs...)
	}

	points, err := v.points(absorber)
	if err != nil {
		return err
	}
	points.NumAbsorbs++
	points.NumAbsorbed += uint64(len(accounts))
	spend := new(big.Int).Mul(e.params.AbsorbSpendEstimate, big.NewInt(int64(len(accounts))))
	points.ApproxSpend = new(big.Int).Add(points.ApproxSpend, spend)

	if err := v.commit(); err != nil {
		return err
	}
	e.emitAll(pending)
	return nil
}

func (e *Engine) absorbAccount(v *stateView, totals *TotalsBasic, absorber, account common.Address, basePrice *big.Int) ([]events.Event, error) {
	user, err := v.user(account)
	if err != nil {
		return nil, err
	}
	e.accrueUserTracking(totals, user)
	if user.Principal.Sign() >= 0 {
		user.BaseTrackingIndex = new(big.Int).Set(totals.TrackingSupplyIndex)
	} else {
		user.BaseTrackingIndex = new(big.Int).Set(totals.TrackingBorrowIndex)
	}

	liquidatable, err := e.isLiquidatable(v, totals, account)
	if err != nil {
		return nil, err
	}
	if !liquidatable {
		return nil, ErrNotLiquidatable
	}

	oldPrincipal := new(big.Int).Set(user.Principal)
	oldBalance := presentValue(totals, oldPrincipal)

	var pending []events.Event
	seizedValue := big.NewInt(0)
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
		seized := new(big.Int).Set(record.Balance)
		value := mulFactor(mulPrice(seized, price, cfg.Scale), cfg.LiquidationFactor)
		seizedValue.Add(seizedValue, value)

		totalsCol, err := v.totalsCollateral(cfg.Asset)
		if err != nil {
			return nil, err
		}
		totalsCol.TotalSupplyAsset = subClampZero(totalsCol.TotalSupplyAsset, seized)
		record.Balance = big.NewInt(0)
		user.AssetsIn &^= uint16(1) << cfg.Offset

		pending = append(pending, AbsorbCollateralEvent{
			Absorber:     absorber,
			Account:      account,
			Asset:        cfg.Asset,
			SeizedAmount: seized,
			UsdValue:     value,
		})
	}

	// Convert the seized value into base units and retire debt with it. Any
	// shortfall is written off: the account's balance floors at zero and the
	// difference comes out of reserves.
	deltaBalance := divPrice(seizedValue, basePrice, e.params.BaseScale)
	newBalance := new(big.Int).Add(oldBalance, deltaBalance)
	if newBalance.Sign() < 0 {
		newBalance = big.NewInt(0)
	}
	newPrincipal := principalValue(totals, newBalance)
	if err := e.updateBasePrincipal(totals, user, newPrincipal); err != nil {
		return nil, err
	}
	repay, supply := repayAndSupplyAmount(oldPrincipal, newPrincipal)
	totals.TotalBorrowBase = subClampZero(totals.TotalBorrowBase, repay)
	totals.TotalSupplyBase = new(big.Int).Add(totals.TotalSupplyBase, supply)

	basePaidOut := new(big.Int).Sub(newBalance, oldBalance)
	pending = append(pending, AbsorbDebtEvent{
		Absorber:    absorber,
		Account:     account,
		BasePaidOut: basePaidOut,
		UsdValue:    mulPrice(basePaidOut, basePrice, e.params.BaseScale),
	})
	if newPrincipal.Sign() > 0 {
		surplus := presentValueSupply(totals.BaseSupplyIndex, newPrincipal)
		pending = append(pending, TransferEvent{
			From:   common.Address{},
			To:     account,
			Asset:  e.params.BaseToken,
			Amount: surplus,
		})
	}
	return pending, nil
}

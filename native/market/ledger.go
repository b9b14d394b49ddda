package market

import "math/big"

// accrueUserTracking settles the account's pending reward units against the
// current tracking index. It must run before any principal change.
func (e *Engine) accrueUserTracking(totals *TotalsBasic, user *UserBasic) {
	var indexDelta *big.Int
	if user.Principal.Sign() >= 0 {
		indexDelta = new(big.Int).Sub(totals.TrackingSupplyIndex, user.BaseTrackingIndex)
	} else {
		indexDelta = new(big.Int).Sub(totals.TrackingBorrowIndex, user.BaseTrackingIndex)
	}
	if indexDelta.Sign() > 0 {
		accrued := new(big.Int).Abs(user.Principal)
		accrued.Mul(accrued, indexDelta)
		accrued.Quo(accrued, trackingIndexScale)
		accrued.Quo(accrued, e.accrualDescale)
		user.BaseTrackingAccrued = new(big.Int).Add(user.BaseTrackingAccrued, accrued)
	}
}

// updateBasePrincipal accrues rewards, then replaces the account's principal
// and re-anchors its tracking index to the side matching the new sign.
func (e *Engine) updateBasePrincipal(totals *TotalsBasic, user *UserBasic, newPrincipal *big.Int) error {
	if _, err := checkInt104(newPrincipal); err != nil {
		return err
	}
	e.accrueUserTracking(totals, user)
	if newPrincipal.Sign() >= 0 {
		user.BaseTrackingIndex = new(big.Int).Set(totals.TrackingSupplyIndex)
	} else {
		user.BaseTrackingIndex = new(big.Int).Set(totals.TrackingBorrowIndex)
	}
	user.Principal = newPrincipal
	return nil
}

// updateAssetsIn maintains the account's collateral bitmap as a balance
// crosses zero in either direction.
func updateAssetsIn(user *UserBasic, cfg AssetConfig, initial, final *big.Int) {
	if initial.Sign() == 0 && final.Sign() != 0 {
		user.AssetsIn |= uint16(1) << cfg.Offset
	} else if initial.Sign() != 0 && final.Sign() == 0 {
		user.AssetsIn &^= uint16(1) << cfg.Offset
	}
}

func isInAsset(assetsIn uint16, offset uint8) bool {
	return assetsIn&(uint16(1)<<offset) != 0
}

// applyBaseDelta settles a signed present-value change against the account
// and splits the principal move across the supply and borrow totals.
func (e *Engine) applyBaseDelta(totals *TotalsBasic, user *UserBasic, delta *big.Int) (*big.Int, error) {
	oldPrincipal := new(big.Int).Set(user.Principal)
	balance := presentValue(totals, oldPrincipal)
	balance.Add(balance, delta)
	newPrincipal := principalValue(totals, balance)
	if err := e.updateBasePrincipal(totals, user, newPrincipal); err != nil {
		return nil, err
	}
	if delta.Sign() >= 0 {
		repay, supply := repayAndSupplyAmount(oldPrincipal, newPrincipal)
		totals.TotalSupplyBase = new(big.Int).Add(totals.TotalSupplyBase, supply)
		totals.TotalBorrowBase = subClampZero(totals.TotalBorrowBase, repay)
	} else {
		withdraw, borrow := withdrawAndBorrowAmount(oldPrincipal, newPrincipal)
		totals.TotalSupplyBase = subClampZero(totals.TotalSupplyBase, withdraw)
		totals.TotalBorrowBase = new(big.Int).Add(totals.TotalBorrowBase, borrow)
	}
	return newPrincipal, nil
}

func subClampZero(a, b *big.Int) *big.Int {
	out := new(big.Int).Sub(a, b)
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return out
}

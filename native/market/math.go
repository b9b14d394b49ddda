package market

import "math/big"

var (
	factorScale        = mustBigInt("1000000000000000000") // 1e18 fixed point for factors and rates
	baseIndexScale     = mustBigInt("1000000000000000")    // 1e15 starting value for interest indices
	trackingIndexScale = mustBigInt("1000000000000000")    // 1e15 fixed point for reward indices

	maxUint64    = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 64), big.NewInt(1))
	maxInt104    = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 103), big.NewInt(1))
	minInt104    = new(big.Int).Neg(maxInt104)
	maxUint128   = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	maxTimestamp = uint64(1)<<40 - 1
)

// maxCollateralAssets bounds the assetsIn bitmap.
const maxCollateralAssets = 15

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

func checkUint64(v *big.Int) (*big.Int, error) {
	if v.Sign() < 0 || v.Cmp(maxUint64) > 0 {
		return nil, ErrInvalidUInt64
	}
	return v, nil
}

func checkInt104(v *big.Int) (*big.Int, error) {
	if v.Cmp(minInt104) < 0 || v.Cmp(maxInt104) > 0 {
		return nil, ErrInvalidInt104
	}
	return v, nil
}

func checkUint128(v *big.Int) (*big.Int, error) {
	if v.Sign() < 0 || v.Cmp(maxUint128) > 0 {
		return nil, ErrInvalidUInt128
	}
	return v, nil
}

// mulFactor scales n by a 1e18 fixed-point factor, truncating down.
func mulFactor(n, factor *big.Int) *big.Int {
	out := new(big.Int).Mul(n, factor)
	return out.Quo(out, factorScale)
}

// divFactor divides n by a 1e18 fixed-point factor, truncating down.
func divFactor(n, factor *big.Int) *big.Int {
	if factor == nil || factor.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(n, factorScale)
	return out.Quo(out, factor)
}

// mulPrice converts an asset quantity to 1e8-scaled value terms.
func mulPrice(n, price, assetScale *big.Int) *big.Int {
	out := new(big.Int).Mul(n, price)
	return out.Quo(out, assetScale)
}

// divPrice converts a 1e8-scaled value back to asset quantity terms.
func divPrice(value, price, assetScale *big.Int) *big.Int {
	if price == nil || price.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(value, assetScale)
	return out.Quo(out, price)
}

// divFloor divides truncating toward negative infinity.
func divFloor(n, d *big.Int) *big.Int {
	out := new(big.Int)
	m := new(big.Int)
	out.QuoRem(n, d, m)
	if m.Sign() != 0 && (n.Sign() < 0) != (d.Sign() < 0) {
		out.Sub(out, big.NewInt(1))
	}
	return out
}

// divCeil divides rounding toward positive infinity.
func divCeil(n, d *big.Int) *big.Int {
	out := new(big.Int)
	m := new(big.Int)
	out.QuoRem(n, d, m)
	if m.Sign() != 0 && (n.Sign() < 0) == (d.Sign() < 0) {
		out.Add(out, big.NewInt(1))
	}
	return out
}

// presentValueSupply converts non-negative supply principal to present value,
// rounding down.
func presentValueSupply(index, principal *big.Int) *big.Int {
	return divFloor(new(big.Int).Mul(principal, index), baseIndexScale)
}

// presentValueBorrow converts a borrow principal magnitude to present value.
// Borrow balances round up so debt is never understated.
func presentValueBorrow(index, principal *big.Int) *big.Int {
	return divCeil(new(big.Int).Mul(principal, index), baseIndexScale)
}

// principalValueSupply converts present value back to supply principal,
// rounding down.
func principalValueSupply(index, present *big.Int) *big.Int {
	return divFloor(new(big.Int).Mul(present, baseIndexScale), index)
}

// principalValueBorrow converts a present-value debt magnitude back to
// principal, rounding up.
func principalValueBorrow(index, present *big.Int) *big.Int {
	return divCeil(new(big.Int).Mul(present, baseIndexScale), index)
}

// presentValue converts a signed principal to its signed present value using
// the matching index, always rounding in the protocol's favor.
func presentValue(totals *TotalsBasic, principal *big.Int) *big.Int {
	if principal.Sign() >= 0 {
		return presentValueSupply(totals.BaseSupplyIndex, principal)
	}
	magnitude := presentValueBorrow(totals.BaseBorrowIndex, new(big.Int).Neg(principal))
	return magnitude.Neg(magnitude)
}

// principalValue converts a signed present value to principal, rounding in
// the direction opposite to presentValue so round trips never leak value to
// the account.
func principalValue(totals *TotalsBasic, present *big.Int) *big.Int {
	if present.Sign() >= 0 {
		return principalValueSupply(totals.BaseSupplyIndex, present)
	}
	magnitude := principalValueBorrow(totals.BaseBorrowIndex, new(big.Int).Neg(present))
	return magnitude.Neg(magnitude)
}

// repayAndSupplyAmount splits a principal increase into the portion that
// retires debt and the portion that adds supply.
func repayAndSupplyAmount(oldPrincipal, newPrincipal *big.Int) (*big.Int, *big.Int) {
	if newPrincipal.Cmp(oldPrincipal) < 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	if newPrincipal.Sign() <= 0 {
		return new(big.Int).Sub(newPrincipal, oldPrincipal), big.NewInt(0)
	}
	if oldPrincipal.Sign() >= 0 {
		return big.NewInt(0), new(big.Int).Sub(newPrincipal, oldPrincipal)
	}
	return new(big.Int).Neg(oldPrincipal), new(big.Int).Set(newPrincipal)
}

// withdrawAndBorrowAmount splits a principal decrease into the portion that
// removes supply and the portion that draws new debt.
func withdrawAndBorrowAmount(oldPrincipal, newPrincipal *big.Int) (*big.Int, *big.Int) {
	if newPrincipal.Cmp(oldPrincipal) > 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	if newPrincipal.Sign() >= 0 {
		return new(big.Int).Sub(oldPrincipal, newPrincipal), big.NewInt(0)
	}
	if oldPrincipal.Sign() <= 0 {
		return big.NewInt(0), new(big.Int).Sub(oldPrincipal, newPrincipal)
	}
	return new(big.Int).Set(oldPrincipal), new(big.Int).Neg(newPrincipal)
}

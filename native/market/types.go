package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TotalsBasic captures the global accounting state for the base asset. The
// principal totals are index-independent share quantities; present values are
// derived on demand through the supply and borrow indices.
type TotalsBasic struct {
	// BaseSupplyIndex is the cumulative interest index applied to supplier
	// principal.
	BaseSupplyIndex *big.Int
	// BaseBorrowIndex is the cumulative interest index applied to borrower
	// principal.
	BaseBorrowIndex *big.Int
	// TrackingSupplyIndex accrues reward units to suppliers proportionally
	// to their principal.
	TrackingSupplyIndex *big.Int
	// TrackingBorrowIndex accrues reward units to borrowers proportionally
	// to their principal.
	TrackingBorrowIndex *big.Int
	// TotalSupplyBase is the aggregate positive principal across all
	// accounts.
	TotalSupplyBase *big.Int
	// TotalBorrowBase is the aggregate borrowed principal across all
	// accounts, stored as a non-negative magnitude.
	TotalBorrowBase *big.Int
	// LastAccrualTime records the timestamp, in seconds, when the indices
	// were last brought current.
	LastAccrualTime uint64
	// PauseFlags gates individual market operations.
	PauseFlags uint8
}

// Pause flag bits carried in TotalsBasic.PauseFlags.
const (
	PauseSupply uint8 = 1 << iota
	PauseTransfer
	PauseWithdraw
	PauseAbsorb
	PauseBuy
)

// TotalsCollateral tracks the protocol-wide balance of a single collateral
// asset owed to accounts.
type TotalsCollateral struct {
	// TotalSupplyAsset is the sum of every account's balance of the asset.
	TotalSupplyAsset *big.Int
}

// AssetConfig describes a listed collateral asset. Configs are immutable once
// listed; factors are 1e18 fixed-point values.
type AssetConfig struct {
	// Asset identifies the collateral token.
	Asset common.Address
	// PriceFeed identifies the oracle feed backing the asset price.
	PriceFeed common.Address
	// Offset is the asset's position in the assetsIn bitmap. Offsets are
	// assigned in ascending listing order.
	Offset uint8
	// Scale is 10^decimals for the asset.
	Scale *big.Int
	// BorrowCollateralFactor discounts collateral when sizing new borrows.
	BorrowCollateralFactor *big.Int
	// LiquidateCollateralFactor discounts collateral when testing for
	// liquidation. Must be at least the borrow collateral factor.
	LiquidateCollateralFactor *big.Int
	// LiquidationFactor is the haircut applied to seized collateral value.
	LiquidationFactor *big.Int
	// SupplyCap bounds the protocol-wide balance of the asset.
	SupplyCap *big.Int
}

// UserBasic maintains the base-asset position for an individual account.
type UserBasic struct {
	// Principal is the signed share quantity; positive means the account is
	// a net supplier, negative a net borrower.
	Principal *big.Int
	// BaseTrackingIndex snapshots the tracking index at the account's last
	// accrual touch.
	BaseTrackingIndex *big.Int
	// BaseTrackingAccrued holds unclaimed reward units.
	BaseTrackingAccrued *big.Int
	// AssetsIn is the bitmap of collateral assets with a nonzero balance.
	AssetsIn uint16
}

// UserCollateral records an account's balance of one collateral asset.
type UserCollateral struct {
	Balance *big.Int
}

// LiquidatorPoints accumulates incentive bookkeeping for absorbers.
type LiquidatorPoints struct {
	NumAbsorbs  uint64
	NumAbsorbed uint64
	// ApproxSpend estimates the absorber's cumulative execution cost. It is
	// used for off-chain incentive accounting only.
	ApproxSpend *big.Int
}

// Clone returns a deep copy of the totals.
func (t *TotalsBasic) Clone() *TotalsBasic {
	if t == nil {
		return nil
	}
	clone := &TotalsBasic{LastAccrualTime: t.LastAccrualTime, PauseFlags: t.PauseFlags}
	clone.BaseSupplyIndex = cloneBig(t.BaseSupplyIndex)
	clone.BaseBorrowIndex = cloneBig(t.BaseBorrowIndex)
	clone.TrackingSupplyIndex = cloneBig(t.TrackingSupplyIndex)
	clone.TrackingBorrowIndex = cloneBig(t.TrackingBorrowIndex)
	clone.TotalSupplyBase = cloneBig(t.TotalSupplyBase)
	clone.TotalBorrowBase = cloneBig(t.TotalBorrowBase)
	return clone
}

// Clone returns a deep copy of the collateral totals.
func (t *TotalsCollateral) Clone() *TotalsCollateral {
	if t == nil {
		return nil
	}
	return &TotalsCollateral{TotalSupplyAsset: cloneBig(t.TotalSupplyAsset)}
}

// Clone returns a deep copy of the user record.
func (u *UserBasic) Clone() *UserBasic {
	if u == nil {
		return nil
	}
	return &UserBasic{
		Principal:           cloneBig(u.Principal),
		BaseTrackingIndex:   cloneBig(u.BaseTrackingIndex),
		BaseTrackingAccrued: cloneBig(u.BaseTrackingAccrued),
		AssetsIn:            u.AssetsIn,
	}
}

// Clone returns a deep copy of the collateral record.
func (c *UserCollateral) Clone() *UserCollateral {
	if c == nil {
		return nil
	}
	return &UserCollateral{Balance: cloneBig(c.Balance)}
}

// Clone returns a deep copy of the liquidator points.
func (p *LiquidatorPoints) Clone() *LiquidatorPoints {
	if p == nil {
		return nil
	}
	return &LiquidatorPoints{
		NumAbsorbs:  p.NumAbsorbs,
		NumAbsorbed: p.NumAbsorbed,
		ApproxSpend: cloneBig(p.ApproxSpend),
	}
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Params groups the governance-controlled market parameters supplied once at
// engine construction.
type Params struct {
	// BaseToken identifies the borrow/lend asset.
	BaseToken common.Address
	// BaseScale is 10^decimals of the base token.
	BaseScale *big.Int
	// Governor may pause and unpause market actions.
	Governor common.Address
	// PauseGuardian may also pause market actions.
	PauseGuardian common.Address
	// BaseMinForRewards is the principal floor below which tracking indices
	// stand still.
	BaseMinForRewards *big.Int
	// BaseBorrowMin is the smallest present-value debt an account may hold.
	BaseBorrowMin *big.Int
	// TargetReserves disables collateral sales once base reserves reach it.
	TargetReserves *big.Int
	// StoreFrontPriceFactor discounts the oracle price during collateral
	// sales, 1e18 fixed point.
	StoreFrontPriceFactor *big.Int
	// TrackingSupplySpeed and TrackingBorrowSpeed are reward units emitted
	// per second, at trackingIndexScale precision.
	TrackingSupplySpeed *big.Int
	TrackingBorrowSpeed *big.Int
	// AbsorbSpendEstimate approximates the absorber's cost per absorbed
	// account for off-chain incentive accounting.
	AbsorbSpendEstimate *big.Int
}

func (p Params) withDefaults() Params {
	out := p
	if out.BaseScale == nil || out.BaseScale.Sign() == 0 {
		out.BaseScale = new(big.Int).Set(factorScale)
	}
	out.BaseMinForRewards = cloneOrZero(p.BaseMinForRewards)
	if out.BaseMinForRewards.Sign() == 0 {
		out.BaseMinForRewards = big.NewInt(1)
	}
	out.BaseBorrowMin = cloneOrZero(p.BaseBorrowMin)
	out.TargetReserves = cloneOrZero(p.TargetReserves)
	out.StoreFrontPriceFactor = cloneOrZero(p.StoreFrontPriceFactor)
	if out.StoreFrontPriceFactor.Sign() == 0 {
		out.StoreFrontPriceFactor = new(big.Int).Set(factorScale)
	}
	out.TrackingSupplySpeed = cloneOrZero(p.TrackingSupplySpeed)
	out.TrackingBorrowSpeed = cloneOrZero(p.TrackingBorrowSpeed)
	out.AbsorbSpendEstimate = cloneOrZero(p.AbsorbSpendEstimate)
	return out
}

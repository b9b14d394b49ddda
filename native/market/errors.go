package market

import "errors"

var (
	errNilState      = errors.New("market engine: state not configured")
	errNilOracle     = errors.New("market engine: price oracle not configured")
	errInvalidAmount = errors.New("market engine: amount must be positive")

	// ErrUnauthorized is returned when the operator lacks permission over the
	// target account or the governance-gated action.
	ErrUnauthorized = errors.New("market engine: unauthorized")
	// ErrPaused is returned when the requested action is gated by a pause flag.
	ErrPaused = errors.New("market engine: action paused")
	// ErrSupplyCapExceeded is returned when supplying collateral would push
	// the asset total past its cap.
	ErrSupplyCapExceeded = errors.New("market engine: supply cap exceeded")
	// ErrNotForSale is returned by buyCollateral when reserves already meet
	// the configured target.
	ErrNotForSale = errors.New("market engine: collateral not for sale")
	// ErrTooMuchSlippage is returned when the computed collateral out falls
	// short of the buyer's minimum.
	ErrTooMuchSlippage = errors.New("market engine: too much slippage")
	// ErrInsufficientReserves is returned when the protocol does not hold
	// enough unowed collateral to settle a purchase.
	ErrInsufficientReserves = errors.New("market engine: insufficient reserves")
	// ErrNotLiquidatable is returned when an absorb target is still above
	// its liquidation margin.
	ErrNotLiquidatable = errors.New("market engine: account not liquidatable")
	// ErrNotCollateralized is returned when a withdraw or transfer would
	// leave the source undercollateralized.
	ErrNotCollateralized = errors.New("market engine: account not collateralized")
	// ErrBorrowTooSmall is returned when a borrow position would fall below
	// the configured minimum.
	ErrBorrowTooSmall = errors.New("market engine: borrow below minimum")
	// ErrInsufficientBalance is returned when an account lacks the balance
	// the operation requires.
	ErrInsufficientBalance = errors.New("market engine: insufficient balance")
	// ErrInsufficientLiquidity is returned when the protocol does not hold
	// enough of an asset to settle an outbound transfer.
	ErrInsufficientLiquidity = errors.New("market engine: insufficient liquidity")
	// ErrUnknownAsset is returned when the asset is neither the base asset
	// nor a listed collateral asset.
	ErrUnknownAsset = errors.New("market engine: unknown asset")
	// ErrTooManyAssets is returned when listing would exceed the assetsIn
	// bitmap capacity.
	ErrTooManyAssets = errors.New("market engine: too many collateral assets")
	// ErrBadAssetConfig is returned when a listing violates the factor
	// ordering constraints.
	ErrBadAssetConfig = errors.New("market engine: invalid asset config")

	// ErrTimestampTooLarge is returned when a timestamp would exceed the
	// width reserved for accrual times.
	ErrTimestampTooLarge = errors.New("market engine: timestamp too large")
	// ErrInvalidUInt64 is returned when a computation would exceed 64 bits.
	ErrInvalidUInt64 = errors.New("market engine: value exceeds uint64")
	// ErrInvalidInt104 is returned when a principal would exceed 104 bits.
	ErrInvalidInt104 = errors.New("market engine: value exceeds int104")
	// ErrInvalidUInt128 is returned when a collateral balance would exceed
	// 128 bits.
	ErrInvalidUInt128 = errors.New("market engine: value exceeds uint128")
)

package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Event type identifiers emitted by the market engine.
const (
	TypeSupply           = "market.supply"
	TypeWithdraw         = "market.withdraw"
	TypeTransfer         = "market.transfer"
	TypeAbsorbDebt       = "market.absorb_debt"
	TypeAbsorbCollateral = "market.absorb_collateral"
	TypeBuyCollateral    = "market.buy_collateral"
	TypePauseAction      = "market.pause_action"
	TypeAllow            = "market.allow"
)

// SupplyEvent records base or collateral entering the pool.
type SupplyEvent struct {
	From   common.Address
	Dst    common.Address
	Asset  common.Address
	Amount *big.Int
}

// WithdrawEvent records base or collateral leaving the pool.
type WithdrawEvent struct {
	Src    common.Address
	To     common.Address
	Asset  common.Address
	Amount *big.Int
}

// TransferEvent records an internal balance move. A zero From marks a credit
// minted by the protocol, such as an absorption surplus.
type TransferEvent struct {
	From   common.Address
	To     common.Address
	Asset  common.Address
	Amount *big.Int
}

// AbsorbDebtEvent records debt extinguished during absorption.
type AbsorbDebtEvent struct {
	Absorber    common.Address
	Account     common.Address
	BasePaidOut *big.Int
	UsdValue    *big.Int
}

// AbsorbCollateralEvent records collateral seized during absorption.
type AbsorbCollateralEvent struct {
	Absorber     common.Address
	Account      common.Address
	Asset        common.Address
	SeizedAmount *big.Int
	UsdValue     *big.Int
}

// BuyCollateralEvent records a reserve-market collateral sale.
type BuyCollateralEvent struct {
	Buyer         common.Address
	Asset         common.Address
	BaseAmount    *big.Int
	CollateralOut *big.Int
}

// PauseActionEvent records a change to the pause flags.
type PauseActionEvent struct {
	Caller common.Address
	Flags  uint8
}

// AllowEvent records an operator permission change.
type AllowEvent struct {
	Owner   common.Address
	Manager common.Address
	Allowed bool
}

func (SupplyEvent) EventType() string           { return TypeSupply }
func (WithdrawEvent) EventType() string         { return TypeWithdraw }
func (TransferEvent) EventType() string         { return TypeTransfer }
func (AbsorbDebtEvent) EventType() string       { return TypeAbsorbDebt }
func (AbsorbCollateralEvent) EventType() string { return TypeAbsorbCollateral }
func (BuyCollateralEvent) EventType() string    { return TypeBuyCollateral }
func (PauseActionEvent) EventType() string      { return TypePauseAction }
func (AllowEvent) EventType() string            { return TypeAllow }

package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CollateralKey addresses one account's balance of one collateral asset.
type CollateralKey struct {
	Account common.Address
	Asset   common.Address
}

// AllowanceKey addresses an owner/manager permission pair.
type AllowanceKey struct {
	Owner   common.Address
	Manager common.Address
}

// Batch collects every record mutated by a single operation. Stores must
// apply a batch atomically: either all records are written or none are.
type Batch struct {
	Totals           *TotalsBasic
	TotalsCollateral map[common.Address]*TotalsCollateral
	Users            map[common.Address]*UserBasic
	Collateral       map[CollateralKey]*UserCollateral
	Points           map[common.Address]*LiquidatorPoints
	Allowances       map[AllowanceKey]bool
	Holdings         map[common.Address]*big.Int
}

// NewBatch returns an empty batch ready for staging.
func NewBatch() *Batch {
	return &Batch{
		TotalsCollateral: make(map[common.Address]*TotalsCollateral),
		Users:            make(map[common.Address]*UserBasic),
		Collateral:       make(map[CollateralKey]*UserCollateral),
		Points:           make(map[common.Address]*LiquidatorPoints),
		Allowances:       make(map[AllowanceKey]bool),
		Holdings:         make(map[common.Address]*big.Int),
	}
}

// Empty reports whether the batch stages no writes.
func (b *Batch) Empty() bool {
	return b.Totals == nil && len(b.TotalsCollateral) == 0 && len(b.Users) == 0 &&
		len(b.Collateral) == 0 && len(b.Points) == 0 && len(b.Allowances) == 0 &&
		len(b.Holdings) == 0
}

// LedgerStore is the persistence boundary for the market engine. Readers
// return nil when a record does not exist; the engine supplies defaults.
type LedgerStore interface {
	Totals() (*TotalsBasic, error)
	TotalsCollateral(asset common.Address) (*TotalsCollateral, error)
	UserBasic(account common.Address) (*UserBasic, error)
	UserCollateral(account, asset common.Address) (*UserCollateral, error)
	LiquidatorPoints(account common.Address) (*LiquidatorPoints, error)
	Allowance(owner, manager common.Address) (bool, error)
	Holding(asset common.Address) (*big.Int, error)
	Apply(batch *Batch) error
}

// AssetTransfer moves tokens between the protocol and external accounts. The
// engine finishes every ledger mutation before invoking a transfer, and a
// transfer failure aborts the operation before any state is committed.
// Fee-on-transfer and rebasing assets are unsupported: the amount received is
// assumed to equal the amount sent.
type AssetTransfer interface {
	TransferIn(asset, from common.Address, amount *big.Int) error
	TransferOut(asset, to common.Address, amount *big.Int) error
}

// BookTransferer satisfies AssetTransfer without moving anything. It serves
// deployments where settlement happens in an external system reconciled
// against the emitted events.
type BookTransferer struct{}

// TransferIn implements AssetTransfer.
func (BookTransferer) TransferIn(common.Address, common.Address, *big.Int) error { return nil }

// TransferOut implements AssetTransfer.
func (BookTransferer) TransferOut(common.Address, common.Address, *big.Int) error { return nil }

// stateView is a read-through staging layer over a LedgerStore. All reads
// return staged copies so a failed operation leaves the store untouched; the
// accumulated batch is applied in one shot on success.
type stateView struct {
	store LedgerStore
	batch *Batch
}

func newStateView(store LedgerStore) *stateView {
	return &stateView{store: store, batch: NewBatch()}
}

func (v *stateView) totals() (*TotalsBasic, error) {
	if v.batch.Totals != nil {
		return v.batch.Totals, nil
	}
	totals, err := v.store.Totals()
	if err != nil {
		return nil, err
	}
	totals = totals.Clone()
	if totals == nil {
		totals = &TotalsBasic{}
	}
	if totals.BaseSupplyIndex == nil || totals.BaseSupplyIndex.Sign() == 0 {
		totals.BaseSupplyIndex = new(big.Int).Set(baseIndexScale)
	}
	if totals.BaseBorrowIndex == nil || totals.BaseBorrowIndex.Sign() == 0 {
		totals.BaseBorrowIndex = new(big.Int).Set(baseIndexScale)
	}
	if totals.TrackingSupplyIndex == nil {
		totals.TrackingSupplyIndex = big.NewInt(0)
	}
	if totals.TrackingBorrowIndex == nil {
		totals.TrackingBorrowIndex = big.NewInt(0)
	}
	if totals.TotalSupplyBase == nil {
		totals.TotalSupplyBase = big.NewInt(0)
	}
	if totals.TotalBorrowBase == nil {
		totals.TotalBorrowBase = big.NewInt(0)
	}
	v.batch.Totals = totals
	return totals, nil
}

func (v *stateView) totalsCollateral(asset common.Address) (*TotalsCollateral, error) {
	if staged, ok := v.batch.TotalsCollateral[asset]; ok {
		return staged, nil
	}
	totals, err := v.store.TotalsCollateral(asset)
	if err != nil {
		return nil, err
	}
	totals = totals.Clone()
	if totals == nil {
		totals = &TotalsCollateral{}
	}
	if totals.TotalSupplyAsset == nil {
		totals.TotalSupplyAsset = big.NewInt(0)
	}
	v.batch.TotalsCollateral[asset] = totals
	return totals, nil
}

func (v *stateView) user(account common.Address) (*UserBasic, error) {
	if staged, ok := v.batch.Users[account]; ok {
		return staged, nil
	}
	user, err := v.store.UserBasic(account)
	if err != nil {
		return nil, err
	}
	user = user.Clone()
	if user == nil {
		user = &UserBasic{}
	}
	if user.Principal == nil {
		user.Principal = big.NewInt(0)
	}
	if user.BaseTrackingIndex == nil {
		user.BaseTrackingIndex = big.NewInt(0)
	}
	if user.BaseTrackingAccrued == nil {
		user.BaseTrackingAccrued = big.NewInt(0)
	}
	v.batch.Users[account] = user
	return user, nil
}

func (v *stateView) userCollateral(account, asset common.Address) (*UserCollateral, error) {
	key := CollateralKey{Account: account, Asset: asset}
	if staged, ok := v.batch.Collateral[key]; ok {
		return staged, nil
	}
	record, err := v.store.UserCollateral(account, asset)
	if err != nil {
		return nil, err
	}
	record = record.Clone()
	if record == nil {
		record = &UserCollateral{}
	}
	if record.Balance == nil {
		record.Balance = big.NewInt(0)
	}
	v.batch.Collateral[key] = record
	return record, nil
}

func (v *stateView) points(account common.Address) (*LiquidatorPoints, error) {
	if staged, ok := v.batch.Points[account]; ok {
		return staged, nil
	}
	points, err := v.store.LiquidatorPoints(account)
	if err != nil {
		return nil, err
	}
	points = points.Clone()
	if points == nil {
		points = &LiquidatorPoints{}
	}
	if points.ApproxSpend == nil {
		points.ApproxSpend = big.NewInt(0)
	}
	v.batch.Points[account] = points
	return points, nil
}

func (v *stateView) holding(asset common.Address) (*big.Int, error) {
	if staged, ok := v.batch.Holdings[asset]; ok {
		return staged, nil
	}
	holding, err := v.store.Holding(asset)
	if err != nil {
		return nil, err
	}
	if holding == nil {
		holding = big.NewInt(0)
	} else {
		holding = new(big.Int).Set(holding)
	}
	v.batch.Holdings[asset] = holding
	return holding, nil
}

func (v *stateView) setHolding(asset common.Address, amount *big.Int) {
	v.batch.Holdings[asset] = amount
}

func (v *stateView) setAllowance(owner, manager common.Address, allowed bool) {
	v.batch.Allowances[AllowanceKey{Owner: owner, Manager: manager}] = allowed
}

func (v *stateView) allowance(owner, manager common.Address) (bool, error) {
	if staged, ok := v.batch.Allowances[AllowanceKey{Owner: owner, Manager: manager}]; ok {
		return staged, nil
	}
	return v.store.Allowance(owner, manager)
}

func (v *stateView) commit() error {
	return v.store.Apply(v.batch)
}

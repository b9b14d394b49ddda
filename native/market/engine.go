package market

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/facebookgo/clock"

	"baselend/core/events"
	nativecommon "baselend/native/common"
)

// Action names used with the pause guard.
const (
	actionSupply   = "supply"
	actionTransfer = "transfer"
	actionWithdraw = "withdraw"
	actionAbsorb   = "absorb"
	actionBuy      = "buy"
)

// Engine is the accounting and risk-management core of a single-collateral-
// pool lending market. Every mutating entry point accrues the global indices
// first, runs all-or-nothing against the ledger store, and only then issues
// external transfers. A single mutex serializes mutation; cross-call ordering
// is the only concurrency the ledger admits.
type Engine struct {
	mu sync.Mutex

	store       LedgerStore
	oracle      PriceOracle
	transferer  AssetTransfer
	clk         clock.Clock
	emitter     events.Emitter
	rates       *InterestRateModel
	params      Params
	assets      []AssetConfig
	assetByAddr map[common.Address]int

	accrualDescale *big.Int
}

// NewEngine constructs a market engine from immutable parameters and an
// interest rate model. Collateral assets are listed with AddAsset before the
// engine serves traffic.
func NewEngine(params Params, rates *InterestRateModel) *Engine {
	p := params.withDefaults()
	descale := new(big.Int).Quo(p.BaseScale, big.NewInt(1_000_000))
	if descale.Sign() == 0 {
		descale = big.NewInt(1)
	}
	return &Engine{
		clk:            clock.New(),
		emitter:        events.NoopEmitter{},
		transferer:     BookTransferer{},
		rates:          rates,
		params:         p,
		assetByAddr:    make(map[common.Address]int),
		accrualDescale: descale,
	}
}

// SetStore wires the engine to its persistence layer.
func (e *Engine) SetStore(store LedgerStore) { e.store = store }

// SetOracle wires the engine to a price feed.
func (e *Engine) SetOracle(oracle PriceOracle) { e.oracle = oracle }

// SetTransferer wires the external settlement adapter.
func (e *Engine) SetTransferer(t AssetTransfer) {
	if t == nil {
		t = BookTransferer{}
	}
	e.transferer = t
}

// SetClock overrides the engine clock; tests install a mock here.
func (e *Engine) SetClock(c clock.Clock) {
	if c != nil {
		e.clk = c
	}
}

// SetEmitter wires the event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// AddAsset lists a collateral asset. Listing order determines the seizure
// order during absorption.
func (e *Engine) AddAsset(cfg AssetConfig) error {
	if len(e.assets) >= maxCollateralAssets {
		return ErrTooManyAssets
	}
	if cfg.Scale == nil || cfg.Scale.Sign() <= 0 {
		return ErrBadAssetConfig
	}
	if cfg.BorrowCollateralFactor == nil || cfg.LiquidateCollateralFactor == nil || cfg.LiquidationFactor == nil {
		return ErrBadAssetConfig
	}
	if cfg.BorrowCollateralFactor.Cmp(cfg.LiquidateCollateralFactor) > 0 {
		return ErrBadAssetConfig
	}
	if cfg.LiquidateCollateralFactor.Cmp(factorScale) >= 0 {
		return ErrBadAssetConfig
	}
	if _, exists := e.assetByAddr[cfg.Asset]; exists {
		return ErrBadAssetConfig
	}
	cfg.Offset = uint8(len(e.assets))
	cfg.Scale = new(big.Int).Set(cfg.Scale)
	cfg.BorrowCollateralFactor = new(big.Int).Set(cfg.BorrowCollateralFactor)
	cfg.LiquidateCollateralFactor = new(big.Int).Set(cfg.LiquidateCollateralFactor)
	cfg.LiquidationFactor = new(big.Int).Set(cfg.LiquidationFactor)
	cfg.SupplyCap = cloneOrZero(cfg.SupplyCap)
	e.assets = append(e.assets, cfg)
	e.assetByAddr[cfg.Asset] = len(e.assets) - 1
	return nil
}

// Assets returns the listed collateral configs in seizure order.
func (e *Engine) Assets() []AssetConfig {
	out := make([]AssetConfig, len(e.assets))
	copy(out, e.assets)
	return out
}

// BaseToken returns the base asset address.
func (e *Engine) BaseToken() common.Address { return e.params.BaseToken }

func (e *Engine) now() uint64 {
	return uint64(e.clk.Now().Unix())
}

type pauseView uint8

func (p pauseView) IsPaused(action string) bool {
	switch action {
	case actionSupply:
		return uint8(p)&PauseSupply != 0
	case actionTransfer:
		return uint8(p)&PauseTransfer != 0
	case actionWithdraw:
		return uint8(p)&PauseWithdraw != 0
	case actionAbsorb:
		return uint8(p)&PauseAbsorb != 0
	case actionBuy:
		return uint8(p)&PauseBuy != 0
	}
	return false
}

func guardAction(totals *TotalsBasic, action string) error {
	if err := nativecommon.Guard(pauseView(totals.PauseFlags), action); err != nil {
		return ErrPaused
	}
	return nil
}

func (e *Engine) view() (*stateView, error) {
	if e.store == nil {
		return nil, errNilState
	}
	return newStateView(e.store), nil
}

func (e *Engine) price(asset common.Address) (*big.Int, error) {
	if e.oracle == nil {
		return nil, errNilOracle
	}
	return e.oracle.Price(asset)
}

func (e *Engine) hasPermission(v *stateView, owner, operator common.Address) (bool, error) {
	if owner == operator {
		return true, nil
	}
	return v.allowance(owner, operator)
}

func (e *Engine) emitAll(evs []events.Event) {
	for _, ev := range evs {
		e.emitter.Emit(ev)
	}
}

// Accrue brings the global indices current.
func (e *Engine) Accrue() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.view()
	if err != nil {
		return err
	}
	totals, err := v.totals()
	if err != nil {
		return err
	}
	if err := e.accrueInternal(totals, e.now()); err != nil {
		return err
	}
	return v.commit()
}

// AccrueAccount brings the global indices current and settles the account's
// pending reward accrual.
func (e *Engine) AccrueAccount(account common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.view()
	if err != nil {
		return err
	}
	totals, err := v.totals()
	if err != nil {
		return err
	}
	if err := e.accrueInternal(totals, e.now()); err != nil {
		return err
	}
	user, err := v.user(account)
	if err != nil {
		return err
	}
	if err := e.updateBasePrincipal(totals, user, new(big.Int).Set(user.Principal)); err != nil {
		return err
	}
	return v.commit()
}

// Allow grants or revokes a manager's permission over the owner's position.
func (e *Engine) Allow(owner, manager common.Address, allowed bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.view()
	if err != nil {
		return err
	}
	v.setAllowance(owner, manager, allowed)
	if err := v.commit(); err != nil {
		return err
	}
	e.emitter.Emit(AllowEvent{Owner: owner, Manager: manager, Allowed: allowed})
	return nil
}

// Pause replaces the pause flags. Only the governor or the pause guardian may
// call it.
func (e *Engine) Pause(caller common.Address, supply, transfer, withdraw, absorb, buy bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.params.Governor && caller != e.params.PauseGuardian {
		return ErrUnauthorized
	}
	v, err := e.view()
	if err != nil {
		return err
	}
	totals, err := v.totals()
	if err != nil {
		return err
	}
	var flags uint8
	if supply {
		flags |= PauseSupply
	}
	if transfer {
		flags |= PauseTransfer
	}
	if withdraw {
		flags |= PauseWithdraw
	}
	if absorb {
		flags |= PauseAbsorb
	}
	if buy {
		flags |= PauseBuy
	}
	totals.PauseFlags = flags
	if err := v.commit(); err != nil {
		return err
	}
	e.emitter.Emit(PauseActionEvent{Caller: caller, Flags: flags})
	return nil
}

// Supply moves the caller's own funds into their own position.
func (e *Engine) Supply(from, asset common.Address, amount *big.Int) error {
	return e.SupplyFrom(from, from, from, asset, amount)
}

// SupplyTo moves the caller's funds into another account's position.
func (e *Engine) SupplyTo(from, dst, asset common.Address, amount *big.Int) error {
	return e.SupplyFrom(from, from, dst, asset, amount)
}

// SupplyFrom moves funds from a managed account into dst. The operator must
// hold an allowance over from unless they are the same account.
func (e *Engine) SupplyFrom(operator, from, dst, asset common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	v, err := e.view()
	if err != nil {
		return err
	}
	ok, err := e.hasPermission(v, from, operator)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	totals, err := v.totals()
	if err != nil {
		return err
	}
	if err := guardAction(totals, actionSupply); err != nil {
		return err
	}
	if err := e.accrueInternal(totals, e.now()); err != nil {
		return err
	}
	if asset == e.params.BaseToken {
		err = e.supplyBase(v, totals, dst, amount)
	} else {
		err = e.supplyCollateral(v, dst, asset, amount)
	}
	if err != nil {
		return err
	}
	if err := e.transferer.TransferIn(asset, from, amount); err != nil {
		return err
	}
	if err := v.commit(); err != nil {
		return err
	}
	e.emitter.Emit(SupplyEvent{From: from, Dst: dst, Asset: asset, Amount: new(big.Int).Set(amount)})
	return nil
}

func (e *Engine) supplyBase(v *stateView, totals *TotalsBasic, dst common.Address, amount *big.Int) error {
	user, err := v.user(dst)
	if err != nil {
		return err
	}
	if _, err := e.applyBaseDelta(totals, user, new(big.Int).Set(amount)); err != nil {
		return err
	}
	if _, err := checkUint64(totals.TotalSupplyBase); err != nil {
		return err
	}
	holding, err := v.holding(e.params.BaseToken)
	if err != nil {
		return err
	}
	v.setHolding(e.params.BaseToken, new(big.Int).Add(holding, amount))
	return nil
}

func (e *Engine) supplyCollateral(v *stateView, dst, asset common.Address, amount *big.Int) error {
	idx, ok := e.assetByAddr[asset]
	if !ok {
		return ErrUnknownAsset
	}
	cfg := e.assets[idx]
	totalsCol, err := v.totalsCollateral(asset)
	if err != nil {
		return err
	}
	newTotal := new(big.Int).Add(totalsCol.TotalSupplyAsset, amount)
	if cfg.SupplyCap.Sign() > 0 && newTotal.Cmp(cfg.SupplyCap) > 0 {
		return ErrSupplyCapExceeded
	}
	if _, err := checkUint128(newTotal); err != nil {
		return err
	}
	record, err := v.userCollateral(dst, asset)
	if err != nil {
		return err
	}
	user, err := v.user(dst)
	if err != nil {
		return err
	}
	initial := new(big.Int).Set(record.Balance)
	record.Balance = new(big.Int).Add(record.Balance, amount)
	totalsCol.TotalSupplyAsset = newTotal
	updateAssetsIn(user, cfg, initial, record.Balance)

	holding, err := v.holding(asset)
	if err != nil {
		return err
	}
	v.setHolding(asset, new(big.Int).Add(holding, amount))
	return nil
}

// Withdraw moves funds from the caller's position to themselves.
func (e *Engine) Withdraw(src, asset common.Address, amount *big.Int) error {
	return e.WithdrawFrom(src, src, src, asset, amount)
}

// WithdrawTo moves funds from the caller's position to another recipient.
func (e *Engine) WithdrawTo(src, to, asset common.Address, amount *big.Int) error {
	return e.WithdrawFrom(src, src, to, asset, amount)
}

// WithdrawFrom moves funds out of a managed account. Withdrawing base beyond
// the positive balance draws a borrow, subject to the minimum borrow size and
// the borrow collateralization check.
func (e *Engine) WithdrawFrom(operator, src, to, asset common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	v, err := e.view()
	if err != nil {
		return err
	}
	ok, err := e.hasPermission(v, src, operator)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	totals, err := v.totals()
	if err != nil {
		return err
	}
	if err := guardAction(totals, actionWithdraw); err != nil {
		return err
	}
	if err := e.accrueInternal(totals, e.now()); err != nil {
		return err
	}
	if asset == e.params.BaseToken {
		err = e.withdrawBase(v, totals, src, amount)
	} else {
		err = e.withdrawCollateral(v, src, asset, amount)
	}
	if err != nil {
		return err
	}
	if err := e.transferer.TransferOut(asset, to, amount); err != nil {
		return err
	}
	if err := v.commit(); err != nil {
		return err
	}
	e.emitter.Emit(WithdrawEvent{Src: src, To: to, Asset: asset, Amount: new(big.Int).Set(amount)})
	return nil
}

func (e *Engine) withdrawBase(v *stateView, totals *TotalsBasic, src common.Address, amount *big.Int) error {
	user, err := v.user(src)
	if err != nil {
		return err
	}
	newPrincipal, err := e.applyBaseDelta(totals, user, new(big.Int).Neg(amount))
	if err != nil {
		return err
	}
	if newPrincipal.Sign() < 0 {
		debt := presentValueBorrow(totals.BaseBorrowIndex, new(big.Int).Neg(newPrincipal))
		if debt.Cmp(e.params.BaseBorrowMin) < 0 {
			return ErrBorrowTooSmall
		}
		collateralized, err := e.isBorrowCollateralized(v, totals, src)
		if err != nil {
			return err
		}
		if !collateralized {
			return ErrNotCollateralized
		}
	}
	holding, err := v.holding(e.params.BaseToken)
	if err != nil {
		return err
	}
	newHolding := new(big.Int).Sub(holding, amount)
	if newHolding.Sign() < 0 {
		return ErrInsufficientLiquidity
	}
	v.setHolding(e.params.BaseToken, newHolding)
	return nil
}

func (e *Engine) withdrawCollateral(v *stateView, src, asset common.Address, amount *big.Int) error {
	idx, ok := e.assetByAddr[asset]
	if !ok {
		return ErrUnknownAsset
	}
	cfg := e.assets[idx]
	record, err := v.userCollateral(src, asset)
	if err != nil {
		return err
	}
	if record.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	totalsCol, err := v.totalsCollateral(asset)
	if err != nil {
		return err
	}
	user, err := v.user(src)
	if err != nil {
		return err
	}
	initial := new(big.Int).Set(record.Balance)
	record.Balance = new(big.Int).Sub(record.Balance, amount)
	totalsCol.TotalSupplyAsset = subClampZero(totalsCol.TotalSupplyAsset, amount)
	updateAssetsIn(user, cfg, initial, record.Balance)

	totals, err := v.totals()
	if err != nil {
		return err
	}
	collateralized, err := e.isBorrowCollateralized(v, totals, src)
	if err != nil {
		return err
	}
	if !collateralized {
		return ErrNotCollateralized
	}
	holding, err := v.holding(asset)
	if err != nil {
		return err
	}
	newHolding := new(big.Int).Sub(holding, amount)
	if newHolding.Sign() < 0 {
		return ErrInsufficientLiquidity
	}
	v.setHolding(asset, newHolding)
	return nil
}

// Transfer moves a balance between two positions without leaving the pool.
func (e *Engine) Transfer(src, dst, asset common.Address, amount *big.Int) error {
	return e.TransferFrom(src, src, dst, asset, amount)
}

// TransferFrom moves a balance out of a managed account into dst.
func (e *Engine) TransferFrom(operator, src, dst, asset common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if src == dst {
		return errInvalidAmount
	}
	v, err := e.view()
	if err != nil {
		return err
	}
	ok, err := e.hasPermission(v, src, operator)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	totals, err := v.totals()
	if err != nil {
		return err
	}
	if err := guardAction(totals, actionTransfer); err != nil {
		return err
	}
	if err := e.accrueInternal(totals, e.now()); err != nil {
		return err
	}
	if asset == e.params.BaseToken {
		err = e.transferBase(v, totals, src, dst, amount)
	} else {
		err = e.transferCollateral(v, totals, src, dst, asset, amount)
	}
	if err != nil {
		return err
	}
	if err := v.commit(); err != nil {
		return err
	}
	e.emitter.Emit(TransferEvent{From: src, To: dst, Asset: asset, Amount: new(big.Int).Set(amount)})
	return nil
}

func (e *Engine) transferBase(v *stateView, totals *TotalsBasic, src, dst common.Address, amount *big.Int) error {
	srcUser, err := v.user(src)
	if err != nil {
		return err
	}
	dstUser, err := v.user(dst)
	if err != nil {
		return err
	}
	newSrcPrincipal, err := e.applyBaseDelta(totals, srcUser, new(big.Int).Neg(amount))
	if err != nil {
		return err
	}
	if _, err := e.applyBaseDelta(totals, dstUser, new(big.Int).Set(amount)); err != nil {
		return err
	}
	if newSrcPrincipal.Sign() < 0 {
		debt := presentValueBorrow(totals.BaseBorrowIndex, new(big.Int).Neg(newSrcPrincipal))
		if debt.Cmp(e.params.BaseBorrowMin) < 0 {
			return ErrBorrowTooSmall
		}
		collateralized, err := e.isBorrowCollateralized(v, totals, src)
		if err != nil {
			return err
		}
		if !collateralized {
			return ErrNotCollateralized
		}
	}
	return nil
}

func (e *Engine) transferCollateral(v *stateView, totals *TotalsBasic, src, dst, asset common.Address, amount *big.Int) error {
	idx, ok := e.assetByAddr[asset]
	if !ok {
		return ErrUnknownAsset
	}
	cfg := e.assets[idx]
	srcRecord, err := v.userCollateral(src, asset)
	if err != nil {
		return err
	}
	if srcRecord.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	dstRecord, err := v.userCollateral(dst, asset)
	if err != nil {
		return err
	}
	srcUser, err := v.user(src)
	if err != nil {
		return err
	}
	dstUser, err := v.user(dst)
	if err != nil {
		return err
	}
	srcInitial := new(big.Int).Set(srcRecord.Balance)
	dstInitial := new(big.Int).Set(dstRecord.Balance)
	srcRecord.Balance = new(big.Int).Sub(srcRecord.Balance, amount)
	dstRecord.Balance = new(big.Int).Add(dstRecord.Balance, amount)
	updateAssetsIn(srcUser, cfg, srcInitial, srcRecord.Balance)
	updateAssetsIn(dstUser, cfg, dstInitial, dstRecord.Balance)

	collateralized, err := e.isBorrowCollateralized(v, totals, src)
	if err != nil {
		return err
	}
	if !collateralized {
		return ErrNotCollateralized
	}
	return nil
}

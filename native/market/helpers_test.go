package market

import (
	"errors"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/facebookgo/clock"

	"baselend/core/events"
)

var (
	testBase       = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testCollateral = common.HexToAddress("0x2000000000000000000000000000000000000002")
	testGovernor   = common.HexToAddress("0x3000000000000000000000000000000000000003")
	testAlice      = common.HexToAddress("0x4000000000000000000000000000000000000004")
	testBob        = common.HexToAddress("0x5000000000000000000000000000000000000005")
	testCarol      = common.HexToAddress("0x6000000000000000000000000000000000000006")
)

// testStore is a map-backed LedgerStore local to the package tests. The
// storage package cannot back these tests directly because it imports this
// package.
type testStore struct {
	mu               sync.Mutex
	totals           *TotalsBasic
	totalsCollateral map[common.Address]*TotalsCollateral
	users            map[common.Address]*UserBasic
	collateral       map[CollateralKey]*UserCollateral
	points           map[common.Address]*LiquidatorPoints
	allowances       map[AllowanceKey]bool
	holdings         map[common.Address]*big.Int
	applyCount       int
}

func newTestStore() *testStore {
	return &testStore{
		totalsCollateral: make(map[common.Address]*TotalsCollateral),
		users:            make(map[common.Address]*UserBasic),
		collateral:       make(map[CollateralKey]*UserCollateral),
		points:           make(map[common.Address]*LiquidatorPoints),
		allowances:       make(map[AllowanceKey]bool),
		holdings:         make(map[common.Address]*big.Int),
	}
}

func (s *testStore) Totals() (*TotalsBasic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals.Clone(), nil
}

func (s *testStore) TotalsCollateral(asset common.Address) (*TotalsCollateral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalsCollateral[asset].Clone(), nil
}

func (s *testStore) UserBasic(account common.Address) (*UserBasic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[account].Clone(), nil
}

func (s *testStore) UserCollateral(account, asset common.Address) (*UserCollateral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collateral[CollateralKey{Account: account, Asset: asset}].Clone(), nil
}

func (s *testStore) LiquidatorPoints(account common.Address) (*LiquidatorPoints, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.points[account].Clone(), nil
}

func (s *testStore) Allowance(owner, manager common.Address) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allowances[AllowanceKey{Owner: owner, Manager: manager}], nil
}

func (s *testStore) Holding(asset common.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	holding, ok := s.holdings[asset]
	if !ok {
		return nil, nil
	}
	return new(big.Int).Set(holding), nil
}

func (s *testStore) Apply(batch *Batch) error {
	if batch == nil || batch.Empty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyCount++
	if batch.Totals != nil {
		s.totals = batch.Totals.Clone()
	}
	for asset, totals := range batch.TotalsCollateral {
		s.totalsCollateral[asset] = totals.Clone()
	}
	for account, user := range batch.Users {
		s.users[account] = user.Clone()
	}
	for key, record := range batch.Collateral {
		s.collateral[key] = record.Clone()
	}
	for account, points := range batch.Points {
		s.points[account] = points.Clone()
	}
	for key, allowed := range batch.Allowances {
		s.allowances[key] = allowed
	}
	for asset, holding := range batch.Holdings {
		s.holdings[asset] = new(big.Int).Set(holding)
	}
	return nil
}

func (s *testStore) setHolding(asset common.Address, amount *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdings[asset] = new(big.Int).Set(amount)
}

// recordingEmitter captures events for assertions.
type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (e *recordingEmitter) Emit(ev events.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *recordingEmitter) all() []events.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]events.Event, len(e.events))
	copy(out, e.events)
	return out
}

var errTransferRefused = errors.New("transfer refused")

// failingTransferer rejects every transfer, for atomicity tests.
type failingTransferer struct{}

func (failingTransferer) TransferIn(common.Address, common.Address, *big.Int) error {
	return errTransferRefused
}

func (failingTransferer) TransferOut(common.Address, common.Address, *big.Int) error {
	return errTransferRefused
}

// factor converts a decimal fraction to 1e18 fixed point exactly.
func factor(f float64) *big.Int {
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(f, 'f', -1, 64))
	if !ok {
		panic("invalid factor")
	}
	scaled := r.Mul(r, new(big.Rat).SetInt(factorScale))
	return new(big.Int).Quo(scaled.Num(), scaled.Denom())
}

func usd(dollars int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(dollars), big.NewInt(100_000_000))
}

// base units for a 6-decimal base asset.
func baseUnits(dollars int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(dollars), big.NewInt(1_000_000))
}

func wethUnits(milli int64) *big.Int {
	out := new(big.Int).Mul(big.NewInt(milli), big.NewInt(1_000_000_000_000_000))
	return out
}

type testFixture struct {
	engine  *Engine
	store   *testStore
	oracle  *StaticOracle
	clock   *clock.Mock
	emitter *recordingEmitter
}

func defaultTestParams() Params {
	return Params{
		BaseToken:           testBase,
		BaseScale:           big.NewInt(1_000_000),
		Governor:            testGovernor,
		PauseGuardian:       testGovernor,
		BaseBorrowMin:       baseUnits(1),
		AbsorbSpendEstimate: big.NewInt(300_000),
	}
}

func newFixture(params Params, rates RateParams) *testFixture {
	engine := NewEngine(params, NewInterestRateModel(rates))
	store := newTestStore()
	oracle := NewStaticOracle()
	oracle.SetPrice(testBase, usd(1))
	oracle.SetPrice(testCollateral, usd(2000))
	mock := clock.NewMock()
	mock.Add(time.Unix(1_700_000_000, 0).Sub(mock.Now()))
	emitter := &recordingEmitter{}

	engine.SetStore(store)
	engine.SetOracle(oracle)
	engine.SetClock(mock)
	engine.SetEmitter(emitter)
	return &testFixture{engine: engine, store: store, oracle: oracle, clock: mock, emitter: emitter}
}

func (f *testFixture) listCollateral() error {
	return f.engine.AddAsset(AssetConfig{
		Asset:                     testCollateral,
		PriceFeed:                 testCollateral,
		Scale:                     factor(1),
		BorrowCollateralFactor:    factor(0.65),
		LiquidateCollateralFactor: factor(0.7),
		LiquidationFactor:         factor(0.93),
		SupplyCap:                 big.NewInt(0),
	})
}

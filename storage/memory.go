package storage

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"baselend/native/market"
)

// MemoryStore keeps the full ledger state in process memory. It backs tests
// and ephemeral deployments; batches apply atomically under the store lock.
type MemoryStore struct {
	mu               sync.RWMutex
	totals           *market.TotalsBasic
	totalsCollateral map[common.Address]*market.TotalsCollateral
	users            map[common.Address]*market.UserBasic
	collateral       map[market.CollateralKey]*market.UserCollateral
	points           map[common.Address]*market.LiquidatorPoints
	allowances       map[market.AllowanceKey]bool
	holdings         map[common.Address]*big.Int
}

// NewMemoryStore constructs an empty in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		totalsCollateral: make(map[common.Address]*market.TotalsCollateral),
		users:            make(map[common.Address]*market.UserBasic),
		collateral:       make(map[market.CollateralKey]*market.UserCollateral),
		points:           make(map[common.Address]*market.LiquidatorPoints),
		allowances:       make(map[market.AllowanceKey]bool),
		holdings:         make(map[common.Address]*big.Int),
	}
}

// Totals implements market.LedgerStore.
func (s *MemoryStore) Totals() (*market.TotalsBasic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totals.Clone(), nil
}

// TotalsCollateral implements market.LedgerStore.
func (s *MemoryStore) TotalsCollateral(asset common.Address) (*market.TotalsCollateral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalsCollateral[asset].Clone(), nil
}

// UserBasic implements market.LedgerStore.
func (s *MemoryStore) UserBasic(account common.Address) (*market.UserBasic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[account].Clone(), nil
}

// UserCollateral implements market.LedgerStore.
func (s *MemoryStore) UserCollateral(account, asset common.Address) (*market.UserCollateral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collateral[market.CollateralKey{Account: account, Asset: asset}].Clone(), nil
}

// LiquidatorPoints implements market.LedgerStore.
func (s *MemoryStore) LiquidatorPoints(account common.Address) (*market.LiquidatorPoints, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.points[account].Clone(), nil
}

// Allowance implements market.LedgerStore.
func (s *MemoryStore) Allowance(owner, manager common.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowances[market.AllowanceKey{Owner: owner, Manager: manager}], nil
}

// Holding implements market.LedgerStore.
func (s *MemoryStore) Holding(asset common.Address) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	holding, ok := s.holdings[asset]
	if !ok {
		return nil, nil
	}
	return new(big.Int).Set(holding), nil
}

// Apply implements market.LedgerStore.
func (s *MemoryStore) Apply(batch *market.Batch) error {
	if batch == nil || batch.Empty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
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

package market

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNoPrice indicates that the oracle has no quote for the requested asset.
var ErrNoPrice = errors.New("market oracle: no price for asset")

// PriceOracle resolves a USD price, scaled to 1e8, for a tracked asset. Every
// listed asset, including the base asset, must be priceable.
type PriceOracle interface {
	Price(asset common.Address) (*big.Int, error)
}

// StaticOracle serves operator-set prices. It is primarily used for tests and
// local deployments where upstream feeds are unavailable.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[common.Address]*big.Int
}

// NewStaticOracle constructs an empty static oracle.
func NewStaticOracle() *StaticOracle {
	return &StaticOracle{prices: make(map[common.Address]*big.Int)}
}

// SetPrice installs or replaces the price for an asset.
func (o *StaticOracle) SetPrice(asset common.Address, price *big.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if price == nil {
		delete(o.prices, asset)
		return
	}
	o.prices[asset] = new(big.Int).Set(price)
}

// Price implements the PriceOracle interface.
func (o *StaticOracle) Price(asset common.Address) (*big.Int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	price, ok := o.prices[asset]
	if !ok {
		return nil, ErrNoPrice
	}
	return new(big.Int).Set(price), nil
}

package storage

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	bolt "go.etcd.io/bbolt"

	"baselend/native/market"
)

var (
	bucketTotals           = []byte("totals")
	bucketTotalsCollateral = []byte("totals_collateral")
	bucketUsers            = []byte("users")
	bucketCollateral       = []byte("collateral")
	bucketPoints           = []byte("points")
	bucketAllowances       = []byte("allowances")
	bucketHoldings         = []byte("holdings")

	keyTotals = []byte("basic")
)

// BoltStore persists the ledger in a BoltDB file. Every record is a JSON
// document keyed by address (or address pair); a batch commits inside a
// single write transaction so operations stay all-or-nothing across process
// restarts.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt initialises (and migrates) the BoltDB-backed ledger store.
func OpenBolt(path string, options *bolt.Options) (*BoltStore, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	buckets := [][]byte{
		bucketTotals, bucketTotalsCollateral, bucketUsers,
		bucketCollateral, bucketPoints, bucketAllowances, bucketHoldings,
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func pairKey(a, b common.Address) []byte {
	key := make([]byte, 0, 2*common.AddressLength)
	key = append(key, a.Bytes()...)
	key = append(key, b.Bytes()...)
	return key
}

func getJSON(tx *bolt.Tx, bucket, key []byte, out any) (bool, error) {
	raw := tx.Bucket(bucket).Get(key)
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func putJSON(tx *bolt.Tx, bucket, key []byte, in any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put(key, raw)
}

// Totals implements market.LedgerStore.
func (s *BoltStore) Totals() (*market.TotalsBasic, error) {
	var out *market.TotalsBasic
	err := s.db.View(func(tx *bolt.Tx) error {
		record := new(market.TotalsBasic)
		found, err := getJSON(tx, bucketTotals, keyTotals, record)
		if err != nil {
			return err
		}
		if found {
			out = record
		}
		return nil
	})
	return out, err
}

// TotalsCollateral implements market.LedgerStore.
func (s *BoltStore) TotalsCollateral(asset common.Address) (*market.TotalsCollateral, error) {
	var out *market.TotalsCollateral
	err := s.db.View(func(tx *bolt.Tx) error {
		record := new(market.TotalsCollateral)
		found, err := getJSON(tx, bucketTotalsCollateral, asset.Bytes(), record)
		if err != nil {
			return err
		}
		if found {
			out = record
		}
		return nil
	})
	return out, err
}

// UserBasic implements market.LedgerStore.
func (s *BoltStore) UserBasic(account common.Address) (*market.UserBasic, error) {
	var out *market.UserBasic
	err := s.db.View(func(tx *bolt.Tx) error {
		record := new(market.UserBasic)
		found, err := getJSON(tx, bucketUsers, account.Bytes(), record)
		if err != nil {
			return err
		}
		if found {
			out = record
		}
		return nil
	})
	return out, err
}

// UserCollateral implements market.LedgerStore.
func (s *BoltStore) UserCollateral(account, asset common.Address) (*market.UserCollateral, error) {
	var out *market.UserCollateral
	err := s.db.View(func(tx *bolt.Tx) error {
		record := new(market.UserCollateral)
		found, err := getJSON(tx, bucketCollateral, pairKey(account, asset), record)
		if err != nil {
			return err
		}
		if found {
			out = record
		}
		return nil
	})
	return out, err
}

// LiquidatorPoints implements market.LedgerStore.
func (s *BoltStore) LiquidatorPoints(account common.Address) (*market.LiquidatorPoints, error) {
	var out *market.LiquidatorPoints
	err := s.db.View(func(tx *bolt.Tx) error {
		record := new(market.LiquidatorPoints)
		found, err := getJSON(tx, bucketPoints, account.Bytes(), record)
		if err != nil {
			return err
		}
		if found {
			out = record
		}
		return nil
	})
	return out, err
}

// Allowance implements market.LedgerStore.
func (s *BoltStore) Allowance(owner, manager common.Address) (bool, error) {
	var allowed bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketAllowances).Get(pairKey(owner, manager))
		allowed = len(raw) == 1 && raw[0] == 1
		return nil
	})
	return allowed, err
}

// Holding implements market.LedgerStore.
func (s *BoltStore) Holding(asset common.Address) (*big.Int, error) {
	var out *big.Int
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketHoldings).Get(asset.Bytes())
		if raw == nil {
			return nil
		}
		value := new(big.Int)
		if err := value.UnmarshalText(raw); err != nil {
			return err
		}
		out = value
		return nil
	})
	return out, err
}

// Apply implements market.LedgerStore. The whole batch commits in one write
// transaction.
func (s *BoltStore) Apply(batch *market.Batch) error {
	if batch == nil || batch.Empty() {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if batch.Totals != nil {
			if err := putJSON(tx, bucketTotals, keyTotals, batch.Totals); err != nil {
				return err
			}
		}
		for asset, totals := range batch.TotalsCollateral {
			if err := putJSON(tx, bucketTotalsCollateral, asset.Bytes(), totals); err != nil {
				return err
			}
		}
		for account, user := range batch.Users {
			if err := putJSON(tx, bucketUsers, account.Bytes(), user); err != nil {
				return err
			}
		}
		for key, record := range batch.Collateral {
			if err := putJSON(tx, bucketCollateral, pairKey(key.Account, key.Asset), record); err != nil {
				return err
			}
		}
		for account, points := range batch.Points {
			if err := putJSON(tx, bucketPoints, account.Bytes(), points); err != nil {
				return err
			}
		}
		for key, allowed := range batch.Allowances {
			value := []byte{0}
			if allowed {
				value[0] = 1
			}
			if err := tx.Bucket(bucketAllowances).Put(pairKey(key.Owner, key.Manager), value); err != nil {
				return err
			}
		}
		for asset, holding := range batch.Holdings {
			raw, err := holding.MarshalText()
			if err != nil {
				return err
			}
			if err := tx.Bucket(bucketHoldings).Put(asset.Bytes(), raw); err != nil {
				return err
			}
		}
		return nil
	})
}

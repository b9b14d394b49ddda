package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"baselend/native/market"
)

const secondsPerYear = 31536000

var (
	factorScale   = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	trackingScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(15), nil)
)

// Config is the top-level daemon configuration decoded from TOML.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Environment   string `toml:"Environment"`

	Log    LogConfig    `toml:"log"`
	RPC    RPCConfig    `toml:"rpc"`
	Market MarketConfig `toml:"market"`
	Oracle OracleConfig `toml:"oracle"`
}

// LogConfig controls structured log output.
type LogConfig struct {
	FilePath   string `toml:"FilePath"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// RPCConfig tunes the HTTP API surface.
type RPCConfig struct {
	// RequestsPerSecond caps mutating calls per client; zero disables limiting.
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

// MarketConfig declares the lending market: the base asset, governance
// addresses, rate curve and collateral listings. Factors and rates are decimal
// strings ("0.8", "0.04") converted to fixed point at load time; per-year
// rates are divided down to per-second.
type MarketConfig struct {
	BaseToken     string `toml:"BaseToken"`
	BaseDecimals  uint8  `toml:"BaseDecimals"`
	Governor      string `toml:"Governor"`
	PauseGuardian string `toml:"PauseGuardian"`

	BaseMinForRewards     string `toml:"BaseMinForRewards"`
	BaseBorrowMin         string `toml:"BaseBorrowMin"`
	TargetReserves        string `toml:"TargetReserves"`
	StoreFrontPriceFactor string `toml:"StoreFrontPriceFactor"`
	TrackingSupplySpeed   string `toml:"TrackingSupplySpeed"`
	TrackingBorrowSpeed   string `toml:"TrackingBorrowSpeed"`
	AbsorbSpendEstimate   string `toml:"AbsorbSpendEstimate"`

	Rates  RatesConfig   `toml:"rates"`
	Assets []AssetConfig `toml:"assets"`
}

// RatesConfig holds the kinked curve as per-year decimal rates.
type RatesConfig struct {
	SupplyBasePerYear      string `toml:"SupplyBasePerYear"`
	SupplySlopeLowPerYear  string `toml:"SupplySlopeLowPerYear"`
	SupplySlopeHighPerYear string `toml:"SupplySlopeHighPerYear"`
	BorrowBasePerYear      string `toml:"BorrowBasePerYear"`
	BorrowSlopeLowPerYear  string `toml:"BorrowSlopeLowPerYear"`
	BorrowSlopeHighPerYear string `toml:"BorrowSlopeHighPerYear"`
	Kink                   string `toml:"Kink"`
	ReserveRate            string `toml:"ReserveRate"`
}

// AssetConfig lists one collateral asset.
type AssetConfig struct {
	Asset                     string `toml:"Asset"`
	PriceFeed                 string `toml:"PriceFeed"`
	Decimals                  uint8  `toml:"Decimals"`
	BorrowCollateralFactor    string `toml:"BorrowCollateralFactor"`
	LiquidateCollateralFactor string `toml:"LiquidateCollateralFactor"`
	LiquidationFactor         string `toml:"LiquidationFactor"`
	SupplyCap                 string `toml:"SupplyCap"`
}

// OracleConfig seeds the static price oracle. Prices are integer strings in
// 1e8 fixed point, keyed by asset address.
type OracleConfig struct {
	Prices map[string]string `toml:"prices"`
}

// Load decodes and validates the configuration at path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file %s does not exist", path)
	}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %q", path, undecoded[0].String())
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./baselend-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "dev"
	}
	if cfg.RPC.Burst <= 0 {
		cfg.RPC.Burst = 10
	}
}

// Validate checks addresses, factors and asset listings without building the
// engine parameter structs.
func (c *Config) Validate() error {
	if _, err := parseAddress(c.Market.BaseToken, "market.BaseToken"); err != nil {
		return err
	}
	if _, err := parseAddress(c.Market.Governor, "market.Governor"); err != nil {
		return err
	}
	if strings.TrimSpace(c.Market.PauseGuardian) != "" {
		if _, err := parseAddress(c.Market.PauseGuardian, "market.PauseGuardian"); err != nil {
			return err
		}
	}
	if _, err := c.MarketParams(); err != nil {
		return err
	}
	if _, err := c.RateParams(); err != nil {
		return err
	}
	assets, err := c.AssetConfigs()
	if err != nil {
		return err
	}
	seen := make(map[common.Address]bool, len(assets))
	for _, asset := range assets {
		if seen[asset.Asset] {
			return fmt.Errorf("config: duplicate asset listing %s", asset.Asset.Hex())
		}
		seen[asset.Asset] = true
	}
	if _, err := c.OraclePrices(); err != nil {
		return err
	}
	return nil
}

// MarketParams converts the market section into engine parameters.
func (c *Config) MarketParams() (market.Params, error) {
	base, err := parseAddress(c.Market.BaseToken, "market.BaseToken")
	if err != nil {
		return market.Params{}, err
	}
	governor, err := parseAddress(c.Market.Governor, "market.Governor")
	if err != nil {
		return market.Params{}, err
	}
	var guardian common.Address
	if strings.TrimSpace(c.Market.PauseGuardian) != "" {
		guardian, err = parseAddress(c.Market.PauseGuardian, "market.PauseGuardian")
		if err != nil {
			return market.Params{}, err
		}
	}
	minRewards, err := parseAmount(c.Market.BaseMinForRewards, "market.BaseMinForRewards")
	if err != nil {
		return market.Params{}, err
	}
	borrowMin, err := parseAmount(c.Market.BaseBorrowMin, "market.BaseBorrowMin")
	if err != nil {
		return market.Params{}, err
	}
	targetReserves, err := parseAmount(c.Market.TargetReserves, "market.TargetReserves")
	if err != nil {
		return market.Params{}, err
	}
	storeFront, err := parseFactor(c.Market.StoreFrontPriceFactor, "market.StoreFrontPriceFactor")
	if err != nil {
		return market.Params{}, err
	}
	if storeFront.Cmp(factorScale) > 0 {
		return market.Params{}, fmt.Errorf("config: market.StoreFrontPriceFactor must not exceed 1")
	}
	supplySpeed, err := parseScaled(c.Market.TrackingSupplySpeed, trackingScale, "market.TrackingSupplySpeed")
	if err != nil {
		return market.Params{}, err
	}
	borrowSpeed, err := parseScaled(c.Market.TrackingBorrowSpeed, trackingScale, "market.TrackingBorrowSpeed")
	if err != nil {
		return market.Params{}, err
	}
	spendEstimate, err := parseAmount(c.Market.AbsorbSpendEstimate, "market.AbsorbSpendEstimate")
	if err != nil {
		return market.Params{}, err
	}
	return market.Params{
		BaseToken:             base,
		BaseScale:             pow10(c.Market.BaseDecimals),
		Governor:              governor,
		PauseGuardian:         guardian,
		BaseMinForRewards:     minRewards,
		BaseBorrowMin:         borrowMin,
		TargetReserves:        targetReserves,
		StoreFrontPriceFactor: storeFront,
		TrackingSupplySpeed:   supplySpeed,
		TrackingBorrowSpeed:   borrowSpeed,
		AbsorbSpendEstimate:   spendEstimate,
	}, nil
}

// RateParams converts per-year decimal rates into per-second 1e18 fixed point.
func (c *Config) RateParams() (market.RateParams, error) {
	rates := c.Market.Rates
	supplyBase, err := parsePerYearRate(rates.SupplyBasePerYear, "market.rates.SupplyBasePerYear")
	if err != nil {
		return market.RateParams{}, err
	}
	supplyLow, err := parsePerYearRate(rates.SupplySlopeLowPerYear, "market.rates.SupplySlopeLowPerYear")
	if err != nil {
		return market.RateParams{}, err
	}
	supplyHigh, err := parsePerYearRate(rates.SupplySlopeHighPerYear, "market.rates.SupplySlopeHighPerYear")
	if err != nil {
		return market.RateParams{}, err
	}
	borrowBase, err := parsePerYearRate(rates.BorrowBasePerYear, "market.rates.BorrowBasePerYear")
	if err != nil {
		return market.RateParams{}, err
	}
	borrowLow, err := parsePerYearRate(rates.BorrowSlopeLowPerYear, "market.rates.BorrowSlopeLowPerYear")
	if err != nil {
		return market.RateParams{}, err
	}
	borrowHigh, err := parsePerYearRate(rates.BorrowSlopeHighPerYear, "market.rates.BorrowSlopeHighPerYear")
	if err != nil {
		return market.RateParams{}, err
	}
	kink, err := parseFactor(rates.Kink, "market.rates.Kink")
	if err != nil {
		return market.RateParams{}, err
	}
	if kink.Cmp(factorScale) > 0 {
		return market.RateParams{}, fmt.Errorf("config: market.rates.Kink must not exceed 1")
	}
	reserveRate, err := parseFactor(rates.ReserveRate, "market.rates.ReserveRate")
	if err != nil {
		return market.RateParams{}, err
	}
	if reserveRate.Cmp(factorScale) >= 0 {
		return market.RateParams{}, fmt.Errorf("config: market.rates.ReserveRate must be below 1")
	}
	return market.RateParams{
		SupplyBase:      supplyBase,
		SupplySlopeLow:  supplyLow,
		SupplySlopeHigh: supplyHigh,
		BorrowBase:      borrowBase,
		BorrowSlopeLow:  borrowLow,
		BorrowSlopeHigh: borrowHigh,
		Kink:            kink,
		ReserveRate:     reserveRate,
	}, nil
}

// AssetConfigs converts the collateral listings into engine asset configs.
// Offsets are assigned by the engine in listing order.
func (c *Config) AssetConfigs() ([]market.AssetConfig, error) {
	out := make([]market.AssetConfig, 0, len(c.Market.Assets))
	for i, listing := range c.Market.Assets {
		prefix := fmt.Sprintf("market.assets[%d]", i)
		asset, err := parseAddress(listing.Asset, prefix+".Asset")
		if err != nil {
			return nil, err
		}
		feed, err := parseAddress(listing.PriceFeed, prefix+".PriceFeed")
		if err != nil {
			return nil, err
		}
		borrowCF, err := parseFactor(listing.BorrowCollateralFactor, prefix+".BorrowCollateralFactor")
		if err != nil {
			return nil, err
		}
		liquidateCF, err := parseFactor(listing.LiquidateCollateralFactor, prefix+".LiquidateCollateralFactor")
		if err != nil {
			return nil, err
		}
		liquidationFactor, err := parseFactor(listing.LiquidationFactor, prefix+".LiquidationFactor")
		if err != nil {
			return nil, err
		}
		supplyCap, err := parseAmount(listing.SupplyCap, prefix+".SupplyCap")
		if err != nil {
			return nil, err
		}
		out = append(out, market.AssetConfig{
			Asset:                     asset,
			PriceFeed:                 feed,
			Scale:                     pow10(listing.Decimals),
			BorrowCollateralFactor:    borrowCF,
			LiquidateCollateralFactor: liquidateCF,
			LiquidationFactor:         liquidationFactor,
			SupplyCap:                 supplyCap,
		})
	}
	return out, nil
}

// OraclePrices parses the static oracle seed prices.
func (c *Config) OraclePrices() (map[common.Address]*big.Int, error) {
	out := make(map[common.Address]*big.Int, len(c.Oracle.Prices))
	for raw, priceStr := range c.Oracle.Prices {
		asset, err := parseAddress(raw, "oracle.prices key")
		if err != nil {
			return nil, err
		}
		price, err := parseAmount(priceStr, fmt.Sprintf("oracle.prices[%s]", raw))
		if err != nil {
			return nil, err
		}
		out[asset] = price
	}
	return out, nil
}

func parseAddress(raw, field string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("config: %s is not a valid address: %q", field, raw)
	}
	return common.HexToAddress(trimmed), nil
}

// parseAmount reads a non-negative integer string in the asset's smallest
// unit. Empty means zero.
func parseAmount(raw, field string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("config: %s is not a valid integer: %q", field, raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("config: %s must not be negative", field)
	}
	return value, nil
}

// parseFactor reads a decimal factor ("0.8") as 1e18 fixed point.
func parseFactor(raw, field string) (*big.Int, error) {
	return parseScaled(raw, factorScale, field)
}

// parseScaled reads a non-negative decimal string and scales it to fixed
// point, truncating any precision beyond the scale.
func parseScaled(raw string, scale *big.Int, field string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return nil, fmt.Errorf("config: %s is not a valid decimal: %q", field, raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("config: %s must not be negative", field)
	}
	scaled := new(big.Rat).Mul(value, new(big.Rat).SetInt(scale))
	return new(big.Int).Quo(scaled.Num(), scaled.Denom()), nil
}

// parsePerYearRate converts an annual decimal rate to a per-second 1e18 rate.
func parsePerYearRate(raw, field string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return nil, fmt.Errorf("config: %s is not a valid decimal: %q", field, raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("config: %s must not be negative", field)
	}
	perSecond := new(big.Rat).Quo(value, new(big.Rat).SetInt64(secondsPerYear))
	scaled := new(big.Rat).Mul(perSecond, new(big.Rat).SetInt(factorScale))
	return new(big.Int).Quo(scaled.Num(), scaled.Denom()), nil
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

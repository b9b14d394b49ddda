package config

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
ListenAddress = ":9090"
DataDir = "/tmp/baselend"
Environment = "test"

[log]
FilePath = "/tmp/baselend/baselend.log"
MaxSizeMB = 64

[rpc]
RequestsPerSecond = 25.0
Burst = 50

[market]
BaseToken = "0x1000000000000000000000000000000000000001"
BaseDecimals = 6
Governor = "0x2000000000000000000000000000000000000002"
PauseGuardian = "0x3000000000000000000000000000000000000003"
BaseMinForRewards = "1000000"
BaseBorrowMin = "100000000"
TargetReserves = "5000000000000"
StoreFrontPriceFactor = "0.5"
TrackingSupplySpeed = "0.2"
TrackingBorrowSpeed = "0.1"
AbsorbSpendEstimate = "300000"

[market.rates]
SupplyBasePerYear = "0"
SupplySlopeLowPerYear = "0.0315360"
SupplySlopeHighPerYear = "0.6307200"
BorrowBasePerYear = "0.0157680"
BorrowSlopeLowPerYear = "0.0315360"
BorrowSlopeHighPerYear = "0.9460800"
Kink = "0.8"
ReserveRate = "0.1"

[[market.assets]]
Asset = "0x4000000000000000000000000000000000000004"
PriceFeed = "0x5000000000000000000000000000000000000005"
Decimals = 18
BorrowCollateralFactor = "0.65"
LiquidateCollateralFactor = "0.7"
LiquidationFactor = "0.93"
SupplyCap = "1000000000000000000000000"

[oracle.prices]
"0x1000000000000000000000000000000000000001" = "100000000"
"0x4000000000000000000000000000000000000004" = "200000000000"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadParsesMarketSection(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.ListenAddress)
	require.Equal(t, "test", cfg.Environment)

	params, err := cfg.MarketParams()
	require.NoError(t, err)
	require.Equal(t, "0x1000000000000000000000000000000000000001", params.BaseToken.Hex())
	require.Equal(t, big.NewInt(1_000_000), params.BaseScale)
	require.Equal(t, big.NewInt(100_000_000), params.BaseBorrowMin)
	// 0.5 at 1e18.
	require.Equal(t, "500000000000000000", params.StoreFrontPriceFactor.String())
	// 0.2 at the 1e15 tracking scale.
	require.Equal(t, "200000000000000", params.TrackingSupplySpeed.String())
}

func TestLoadConvertsPerYearRates(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	rates, err := cfg.RateParams()
	require.NoError(t, err)

	// 0.0315360 per year over 31,536,000 seconds is exactly 1e9 at 1e18.
	require.Equal(t, "1000000000", rates.SupplySlopeLow.String())
	require.Equal(t, "500000000", rates.BorrowBase.String())
	require.Equal(t, "800000000000000000", rates.Kink.String())
}

func TestLoadParsesAssetsAndPrices(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assets, err := cfg.AssetConfigs()
	require.NoError(t, err)
	require.Len(t, assets, 1)
	require.Equal(t, "0x4000000000000000000000000000000000000004", assets[0].Asset.Hex())
	require.Equal(t, "650000000000000000", assets[0].BorrowCollateralFactor.String())
	require.Equal(t, "1000000000000000000", assets[0].Scale.String())

	prices, err := cfg.OraclePrices()
	require.NoError(t, err)
	require.Len(t, prices, 2)
	require.Equal(t, "200000000000", prices[assets[0].Asset].String())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	// The key goes at the top level: inside [oracle.prices] it would decode
	// into the price map and fail on type, not on being unknown.
	_, err := Load(writeConfig(t, "BogusKey = true\n"+sampleConfig))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown key")
}

func TestLoadRejectsBadAddress(t *testing.T) {
	body := strings.Replace(sampleConfig,
		`BaseToken = "0x1000000000000000000000000000000000000001"`,
		`BaseToken = "not-an-address"`, 1)
	_, err := Load(writeConfig(t, body))
	require.Error(t, err)
	require.Contains(t, err.Error(), "market.BaseToken")
}

func TestValidateRejectsDuplicateAssets(t *testing.T) {
	dup := sampleConfig + `
[[market.assets]]
Asset = "0x4000000000000000000000000000000000000004"
PriceFeed = "0x5000000000000000000000000000000000000005"
Decimals = 18
BorrowCollateralFactor = "0.65"
LiquidateCollateralFactor = "0.7"
LiquidationFactor = "0.93"
SupplyCap = "1"
`
	_, err := Load(writeConfig(t, dup))
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate asset")
}

func TestFactorBounds(t *testing.T) {
	body := strings.Replace(sampleConfig,
		`StoreFrontPriceFactor = "0.5"`,
		`StoreFrontPriceFactor = "1.5"`, 1)
	_, err := Load(writeConfig(t, body))
	require.Error(t, err)
	require.Contains(t, err.Error(), "StoreFrontPriceFactor")
}

package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/require"

	"baselend/native/market"
	"baselend/storage"
)

var (
	baseToken  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	collateral = common.HexToAddress("0x2000000000000000000000000000000000000002")
	governor   = common.HexToAddress("0x3000000000000000000000000000000000000003")
	alice      = common.HexToAddress("0x4000000000000000000000000000000000000004")
	bob        = common.HexToAddress("0x5000000000000000000000000000000000000005")
)

func factor(f float64) *big.Int {
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(f, 'f', -1, 64))
	if !ok {
		panic("invalid factor")
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	scaled := r.Mul(r, new(big.Rat).SetInt(scale))
	return new(big.Int).Quo(scaled.Num(), scaled.Denom())
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	engine := market.NewEngine(market.Params{
		BaseToken:     baseToken,
		BaseScale:     big.NewInt(1_000_000),
		Governor:      governor,
		BaseBorrowMin: big.NewInt(10_000_000_000),
	}, market.NewInterestRateModel(market.RateParams{
		BorrowBase: big.NewInt(1_000_000_000),
		Kink:       factor(0.8),
	}))
	require.NoError(t, engine.AddAsset(market.AssetConfig{
		Asset:                     collateral,
		PriceFeed:                 collateral,
		Scale:                     factor(1),
		BorrowCollateralFactor:    factor(0.65),
		LiquidateCollateralFactor: factor(0.7),
		LiquidationFactor:         factor(0.93),
		SupplyCap:                 big.NewInt(0),
	}))

	oracle := market.NewStaticOracle()
	oracle.SetPrice(baseToken, big.NewInt(100_000_000))
	oracle.SetPrice(collateral, big.NewInt(2_000_00000000))

	mock := clock.NewMock()
	mock.Add(time.Unix(1_700_000_000, 0).Sub(mock.Now()))

	engine.SetStore(storage.NewMemoryStore())
	engine.SetOracle(oracle)
	engine.SetClock(mock)

	server := NewServer(engine, nil, Options{})
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return server, ts
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func getJSONBody(t *testing.T, ts *httptest.Server, path string, into any) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	return resp
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSupplyAndReadBack(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts, "/v1/supply", supplyRequest{
		From:   alice.Hex(),
		Asset:  baseToken.Hex(),
		Amount: "1000000000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var account accountResponse
	getJSONBody(t, ts, "/v1/accounts/"+alice.Hex(), &account)
	require.Equal(t, "1000000000", account.Balance)
	require.Equal(t, "0", account.BorrowBalance)
}

func TestSupplyRejectsBadAmount(t *testing.T) {
	_, ts := newTestServer(t)
	resp := postJSON(t, ts, "/v1/supply", supplyRequest{
		From:   alice.Hex(),
		Asset:  baseToken.Hex(),
		Amount: "not-a-number",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWithdrawWithoutCollateralConflicts(t *testing.T) {
	_, ts := newTestServer(t)
	resp := postJSON(t, ts, "/v1/withdraw", withdrawRequest{
		Src:    alice.Hex(),
		Asset:  baseToken.Hex(),
		Amount: "1000000000",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Contains(t, body.Error, "borrow below minimum")
}

func TestOperatorWithoutAllowanceForbidden(t *testing.T) {
	_, ts := newTestServer(t)
	resp := postJSON(t, ts, "/v1/supply", supplyRequest{
		Operator: bob.Hex(),
		From:     alice.Hex(),
		Asset:    baseToken.Hex(),
		Amount:   "100",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAllowEnablesOperator(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts, "/v1/allow", allowRequest{
		Owner:   alice.Hex(),
		Manager: bob.Hex(),
		Allowed: true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, ts, "/v1/supply", supplyRequest{
		Operator: bob.Hex(),
		From:     alice.Hex(),
		Asset:    baseToken.Hex(),
		Amount:   "100",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPauseBlocksSupply(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts, "/v1/pause", pauseRequest{
		Caller: governor.Hex(),
		Supply: true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, ts, "/v1/supply", supplyRequest{
		From:   alice.Hex(),
		Asset:  baseToken.Hex(),
		Amount: "100",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPauseRequiresGovernor(t *testing.T) {
	_, ts := newTestServer(t)
	resp := postJSON(t, ts, "/v1/pause", pauseRequest{
		Caller: alice.Hex(),
		Supply: true,
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUnknownAssetIs404(t *testing.T) {
	_, ts := newTestServer(t)
	unknown := common.HexToAddress("0x9000000000000000000000000000000000000009")
	var out map[string]string
	resp := getJSONBody(t, ts, fmt.Sprintf("/v1/market/assets/%s", unknown.Hex()), &out)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMarketSnapshot(t *testing.T) {
	_, ts := newTestServer(t)
	var snapshot marketResponse
	resp := getJSONBody(t, ts, "/v1/market", &snapshot)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, baseToken.Hex(), snapshot.BaseToken)
	require.Equal(t, "1000000000000000", snapshot.BaseSupplyIndex)
}

func TestRatesEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	var rates ratesResponse
	resp := getJSONBody(t, ts, "/v1/market/rates", &rates)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "0", rates.Utilization)
	require.Equal(t, "1000000000", rates.BorrowRate)
}

func TestRateLimit(t *testing.T) {
	engine := market.NewEngine(market.Params{BaseToken: baseToken, BaseScale: big.NewInt(1_000_000)},
		market.NewInterestRateModel(market.RateParams{Kink: factor(0.8)}))
	engine.SetStore(storage.NewMemoryStore())
	oracle := market.NewStaticOracle()
	oracle.SetPrice(baseToken, big.NewInt(100_000_000))
	engine.SetOracle(oracle)

	server := NewServer(engine, nil, Options{RequestsPerSecond: 1, Burst: 1})
	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	first := postJSON(t, ts, "/v1/accrue", accrueRequest{})
	require.Equal(t, http.StatusOK, first.StatusCode)
	second := postJSON(t, ts, "/v1/accrue", accrueRequest{})
	require.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}

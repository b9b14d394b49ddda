package rpc

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type marketResponse struct {
	BaseToken           string `json:"baseToken"`
	BaseSupplyIndex     string `json:"baseSupplyIndex"`
	BaseBorrowIndex     string `json:"baseBorrowIndex"`
	TrackingSupplyIndex string `json:"trackingSupplyIndex"`
	TrackingBorrowIndex string `json:"trackingBorrowIndex"`
	TotalSupplyBase     string `json:"totalSupplyBase"`
	TotalBorrowBase     string `json:"totalBorrowBase"`
	LastAccrualTime     uint64 `json:"lastAccrualTime"`
	PauseFlags          uint8  `json:"pauseFlags"`
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	totals, err := s.engine.TotalsBasic()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, marketResponse{
		BaseToken:           s.engine.BaseToken().Hex(),
		BaseSupplyIndex:     bigString(totals.BaseSupplyIndex),
		BaseBorrowIndex:     bigString(totals.BaseBorrowIndex),
		TrackingSupplyIndex: bigString(totals.TrackingSupplyIndex),
		TrackingBorrowIndex: bigString(totals.TrackingBorrowIndex),
		TotalSupplyBase:     bigString(totals.TotalSupplyBase),
		TotalBorrowBase:     bigString(totals.TotalBorrowBase),
		LastAccrualTime:     totals.LastAccrualTime,
		PauseFlags:          totals.PauseFlags,
	})
}

type ratesResponse struct {
	Utilization string `json:"utilization"`
	SupplyRate  string `json:"supplyRate"`
	BorrowRate  string `json:"borrowRate"`
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	utilization, err := s.engine.Utilization()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ratesResponse{
		Utilization: bigString(utilization),
		SupplyRate:  bigString(s.engine.SupplyRate(utilization)),
		BorrowRate:  bigString(s.engine.BorrowRate(utilization)),
	})
}

func (s *Server) handleReserves(w http.ResponseWriter, r *http.Request) {
	reserves, err := s.engine.Reserves()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.metrics.Reserves.Set(float64FromBig(reserves))
	writeJSON(w, http.StatusOK, map[string]string{"reserves": bigString(reserves)})
}

type assetResponse struct {
	Asset                     string `json:"asset"`
	PriceFeed                 string `json:"priceFeed"`
	Offset                    uint8  `json:"offset"`
	Scale                     string `json:"scale"`
	BorrowCollateralFactor    string `json:"borrowCollateralFactor"`
	LiquidateCollateralFactor string `json:"liquidateCollateralFactor"`
	LiquidationFactor         string `json:"liquidationFactor"`
	SupplyCap                 string `json:"supplyCap"`
}

func (s *Server) handleAssets(w http.ResponseWriter, _ *http.Request) {
	assets := s.engine.Assets()
	out := make([]assetResponse, 0, len(assets))
	for _, cfg := range assets {
		out = append(out, assetResponse{
			Asset:                     cfg.Asset.Hex(),
			PriceFeed:                 cfg.PriceFeed.Hex(),
			Offset:                    cfg.Offset,
			Scale:                     bigString(cfg.Scale),
			BorrowCollateralFactor:    bigString(cfg.BorrowCollateralFactor),
			LiquidateCollateralFactor: bigString(cfg.LiquidateCollateralFactor),
			LiquidationFactor:         bigString(cfg.LiquidationFactor),
			SupplyCap:                 bigString(cfg.SupplyCap),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": out})
}

func (s *Server) handleAssetTotals(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAddress(chi.URLParam(r, "asset"), "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	totals, err := s.engine.TotalsCollateral(asset)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"asset":            asset.Hex(),
		"totalSupplyAsset": bigString(totals.TotalSupplyAsset),
	})
}

func (s *Server) handleAssetReserves(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAddress(chi.URLParam(r, "asset"), "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reserves, err := s.engine.CollateralReserves(asset)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"asset":    asset.Hex(),
		"reserves": bigString(reserves),
	})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAddress(chi.URLParam(r, "asset"), "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	baseAmount, err := parseAmount(r.URL.Query().Get("baseAmount"), "baseAmount")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	quote, err := s.engine.QuoteCollateral(asset, baseAmount)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"asset":         asset.Hex(),
		"baseAmount":    bigString(baseAmount),
		"collateralOut": bigString(quote),
	})
}

type accountResponse struct {
	Address             string `json:"address"`
	Principal           string `json:"principal"`
	Balance             string `json:"balance"`
	BorrowBalance       string `json:"borrowBalance"`
	BaseTrackingAccrued string `json:"baseTrackingAccrued"`
	AssetsIn            uint16 `json:"assetsIn"`
	Collateralized      bool   `json:"collateralized"`
	Liquidatable        bool   `json:"liquidatable"`
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(chi.URLParam(r, "address"), "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := s.engine.UserBasic(account)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	balance, err := s.engine.BalanceOf(account)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	borrow, err := s.engine.BorrowBalanceOf(account)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	collateralized, err := s.engine.IsBorrowCollateralized(account)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	liquidatable, err := s.engine.IsLiquidatable(account)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{
		Address:             account.Hex(),
		Principal:           bigString(user.Principal),
		Balance:             bigString(balance),
		BorrowBalance:       bigString(borrow),
		BaseTrackingAccrued: bigString(user.BaseTrackingAccrued),
		AssetsIn:            user.AssetsIn,
		Collateralized:      collateralized,
		Liquidatable:        liquidatable,
	})
}

func (s *Server) handleAccountCollateral(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(chi.URLParam(r, "address"), "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	asset, err := parseAddress(chi.URLParam(r, "asset"), "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	balance, err := s.engine.CollateralBalanceOf(account, asset)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address": account.Hex(),
		"asset":   asset.Hex(),
		"balance": bigString(balance),
	})
}

func (s *Server) handlePoints(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(chi.URLParam(r, "address"), "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	points, err := s.engine.LiquidatorPoints(account)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address":     account.Hex(),
		"numAbsorbs":  points.NumAbsorbs,
		"numAbsorbed": points.NumAbsorbed,
		"approxSpend": bigString(points.ApproxSpend),
	})
}

type accrueRequest struct {
	Account string `json:"account,omitempty"`
}

func (s *Server) handleAccrue(w http.ResponseWriter, r *http.Request) {
	var req accrueRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	var err error
	if req.Account == "" {
		err = s.engine.Accrue()
	} else {
		account, addrErr := parseAddress(req.Account, "account")
		if addrErr != nil {
			writeError(w, http.StatusBadRequest, addrErr.Error())
			return
		}
		err = s.engine.AccrueAccount(account)
	}
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accrued"})
}

type supplyRequest struct {
	Operator string `json:"operator,omitempty"`
	From     string `json:"from"`
	Dst      string `json:"dst,omitempty"`
	Asset    string `json:"asset"`
	Amount   string `json:"amount"`
}

func (s *Server) handleSupply(w http.ResponseWriter, r *http.Request) {
	var req supplyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := parseAddress(req.From, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	operator := from
	if req.Operator != "" {
		if operator, err = parseAddress(req.Operator, "operator"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	dst := from
	if req.Dst != "" {
		if dst, err = parseAddress(req.Dst, "dst"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	asset, err := parseAddress(req.Asset, "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.SupplyFrom(operator, from, dst, asset, amount); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "supplied"})
}

type withdrawRequest struct {
	Operator string `json:"operator,omitempty"`
	Src      string `json:"src"`
	To       string `json:"to,omitempty"`
	Asset    string `json:"asset"`
	Amount   string `json:"amount"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	src, err := parseAddress(req.Src, "src")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	operator := src
	if req.Operator != "" {
		if operator, err = parseAddress(req.Operator, "operator"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	to := src
	if req.To != "" {
		if to, err = parseAddress(req.To, "to"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	asset, err := parseAddress(req.Asset, "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.WithdrawFrom(operator, src, to, asset, amount); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

type transferRequest struct {
	Operator string `json:"operator,omitempty"`
	Src      string `json:"src"`
	Dst      string `json:"dst"`
	Asset    string `json:"asset"`
	Amount   string `json:"amount"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	src, err := parseAddress(req.Src, "src")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dst, err := parseAddress(req.Dst, "dst")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	operator := src
	if req.Operator != "" {
		if operator, err = parseAddress(req.Operator, "operator"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	asset, err := parseAddress(req.Asset, "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.TransferFrom(operator, src, dst, asset, amount); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

type absorbRequest struct {
	Absorber string   `json:"absorber"`
	Accounts []string `json:"accounts"`
}

func (s *Server) handleAbsorb(w http.ResponseWriter, r *http.Request) {
	var req absorbRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	absorber, err := parseAddress(req.Absorber, "absorber")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Accounts) == 0 {
		writeError(w, http.StatusBadRequest, "accounts is required")
		return
	}
	parsed, err := parseAddressList(req.Accounts, "accounts")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.Absorb(absorber, parsed); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.metrics.AccountsAbsorbed.Add(float64(len(parsed)))
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "absorbed",
		"accounts": len(parsed),
	})
}

type buyRequest struct {
	Buyer            string `json:"buyer"`
	Asset            string `json:"asset"`
	BaseAmount       string `json:"baseAmount"`
	MinCollateralOut string `json:"minCollateralOut,omitempty"`
	Recipient        string `json:"recipient,omitempty"`
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	buyer, err := parseAddress(req.Buyer, "buyer")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	asset, err := parseAddress(req.Asset, "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	baseAmount, err := parseAmount(req.BaseAmount, "baseAmount")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	minOut := bigZero()
	if req.MinCollateralOut != "" {
		if minOut, err = parseAmount(req.MinCollateralOut, "minCollateralOut"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	recipient := buyer
	if req.Recipient != "" {
		if recipient, err = parseAddress(req.Recipient, "recipient"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	out, err := s.engine.BuyCollateral(buyer, asset, minOut, baseAmount, recipient)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":        "bought",
		"collateralOut": bigString(out),
	})
}

type allowRequest struct {
	Owner   string `json:"owner"`
	Manager string `json:"manager"`
	Allowed bool   `json:"allowed"`
}

func (s *Server) handleAllow(w http.ResponseWriter, r *http.Request) {
	var req allowRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	owner, err := parseAddress(req.Owner, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	manager, err := parseAddress(req.Manager, "manager")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.Allow(owner, manager, req.Allowed); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type pauseRequest struct {
	Caller   string `json:"caller"`
	Supply   bool   `json:"supply"`
	Transfer bool   `json:"transfer"`
	Withdraw bool   `json:"withdraw"`
	Absorb   bool   `json:"absorb"`
	Buy      bool   `json:"buy"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.Pause(caller, req.Supply, req.Transfer, req.Withdraw, req.Absorb, req.Buy); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

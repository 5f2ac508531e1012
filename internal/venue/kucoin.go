package venue

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mserran2/triarb/pkg/types"
)

const symbolInfoTTL = 24 * time.Hour

// KuCoin is the Adapter implementation for KuCoin spot. All signed requests
// carry KC-API-* headers (key version 2); the signing timestamp is local time
// shifted by the last measured server skew plus a configured buffer.
type KuCoin struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	passphrase string // already signed for key version 2
	keyVersion string

	httpClient   *http.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
	fees         FeeSchedule

	// timeSkewMS is serverTime - localTime from the last SyncTime. Reads
	// are lock-free on the signing path; SyncTime is the single writer.
	timeSkewMS   atomic.Int64
	syncBufferMS int64

	metadataCache Cache
	logger        *zap.Logger
}

// Cache is the slice of pkg/cache the adapter needs for SymbolInfo.
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration) bool
}

// NewKuCoin creates a KuCoin adapter.
func NewKuCoin(cfg *Config) (*KuCoin, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	pollInterval := cfg.OrderPollInterval
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}

	pollTimeout := cfg.OrderPollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 10 * time.Second
	}

	k := &KuCoin{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		apiSecret:    cfg.APISecret,
		keyVersion:   cfg.KeyVersion,
		httpClient:   &http.Client{Timeout: timeout},
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		fees:         cfg.Fees,
		syncBufferMS: cfg.TimeSyncBufferMS,
		logger:       cfg.Logger,
	}

	if cfg.MetadataCache != nil {
		k.metadataCache = cfg.MetadataCache
	}

	// Key version 2 signs the passphrase itself; version 1 sends it plain.
	if cfg.KeyVersion == "2" {
		k.passphrase = signBase64(cfg.APISecret, cfg.APIPassphrase)
	} else {
		k.passphrase = cfg.APIPassphrase
	}

	return k, nil
}

// Name returns the venue id.
func (k *KuCoin) Name() string { return "kucoin" }

// FeeSchedule returns the configured taker fee model.
func (k *KuCoin) FeeSchedule() FeeSchedule { return k.fees }

// Close releases idle connections.
func (k *KuCoin) Close() error {
	k.httpClient.CloseIdleConnections()
	return nil
}

// envelope is KuCoin's uniform response wrapper.
type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

const codeOK = "200000"

// Venue error codes the engine cares about. Everything else on the order
// path normalizes to REJECTED.
const (
	codeClockSkew   = "400005" // Invalid KC-API-TIMESTAMP
	codeNoBalance   = "200004" // Balance insufficient
	codeBadParam    = "400100" // Parameter error: increments, minimums
	codeOrderDenied = "200003" // Order placement suspended
)

// GetOrderbook fetches the aggregated level-2 book. KuCoin serves fixed
// depths of 20 and 100; anything above 20 requests the deeper book.
func (k *KuCoin) GetOrderbook(ctx context.Context, symbol string, depth int) (*types.OrderbookSnapshot, error) {
	path := "/api/v1/market/orderbook/level2_20"
	if depth > 20 {
		path = "/api/v1/market/orderbook/level2_100"
	}

	start := time.Now()
	data, err := k.request(ctx, http.MethodGet, path+"?symbol="+symbol, nil, false)
	observeRequest("orderbook", start, err)

	if err != nil {
		return nil, fmt.Errorf("fetch orderbook %s: %w", symbol, err)
	}

	var book struct {
		Time int64       `json:"time"`
		Bids [][2]string `json:"bids"`
		Asks [][2]string `json:"asks"`
	}

	err = json.Unmarshal(data, &book)
	if err != nil {
		return nil, fmt.Errorf("decode orderbook %s: %w", symbol, err)
	}

	snap := &types.OrderbookSnapshot{
		Symbol:     symbol,
		Bids:       parseLevels(book.Bids),
		Asks:       parseLevels(book.Asks),
		CapturedAt: time.Now(),
	}

	if book.Time > 0 {
		snap.CapturedAt = time.UnixMilli(book.Time)
	}

	if len(snap.Bids) == 0 || len(snap.Asks) == 0 {
		return nil, &types.VenueError{
			Venue:   "kucoin",
			Kind:    types.ErrNoLiquidity,
			Message: fmt.Sprintf("book for %s has an empty side", symbol),
		}
	}

	return snap, nil
}

func parseLevels(raw [][2]string) []types.PriceLevel {
	levels := make([]types.PriceLevel, 0, len(raw))

	for _, entry := range raw {
		price, err := strconv.ParseFloat(entry[0], 64)
		if err != nil {
			continue
		}

		size, err := strconv.ParseFloat(entry[1], 64)
		if err != nil {
			continue
		}

		levels = append(levels, types.PriceLevel{Price: price, Size: size})
	}

	return levels
}

// PlaceMarketOrder submits a market order and polls it to a terminal state.
// Buy quantities are quote funds, sell quantities are base size; both are
// floored to the symbol's increment before submission, and venue minimums
// are checked locally so a doomed order surfaces as PRECISION without
// burning a request.
func (k *KuCoin) PlaceMarketOrder(ctx context.Context, symbol string, side types.Side, quantity decimal.Decimal) (*types.LegResult, error) {
	info, err := k.SymbolInfo(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("symbol info for order: %w", err)
	}

	order := map[string]string{
		"clientOid": uuid.New().String(),
		"symbol":    symbol,
		"side":      string(side),
		"type":      "market",
	}

	switch side {
	case types.SideBuy:
		funds := quantizeDown(quantity, info.QuoteIncrement)
		if funds.LessThan(info.MinFunds) || !funds.IsPositive() {
			return nil, &types.VenueError{
				Venue:   "kucoin",
				Kind:    types.ErrPrecision,
				Message: fmt.Sprintf("funds %s below symbol minimum %s", funds, info.MinFunds),
			}
		}

		order["funds"] = funds.String()
	case types.SideSell:
		size := quantizeDown(quantity, info.BaseIncrement)
		if size.LessThan(info.BaseMinSize) || !size.IsPositive() {
			return nil, &types.VenueError{
				Venue:   "kucoin",
				Kind:    types.ErrPrecision,
				Message: fmt.Sprintf("size %s below symbol minimum %s", size, info.BaseMinSize),
			}
		}

		order["size"] = size.String()
	default:
		return nil, fmt.Errorf("unknown side %q", side)
	}

	start := time.Now()

	data, err := k.request(ctx, http.MethodPost, "/api/v1/orders", order, true)
	observeRequest("place_order", start, err)

	if err != nil {
		OrdersTotal.WithLabelValues(string(side), "error").Inc()
		return nil, fmt.Errorf("place %s %s: %w", side, symbol, err)
	}

	var placed struct {
		OrderID string `json:"orderId"`
	}

	err = json.Unmarshal(data, &placed)
	if err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}

	result, err := k.awaitFill(ctx, placed.OrderID)
	if err != nil {
		OrdersTotal.WithLabelValues(string(side), "error").Inc()
		return nil, err
	}

	result.Symbol = symbol
	result.Side = side
	result.WallclockMS = time.Since(start).Milliseconds()

	OrdersTotal.WithLabelValues(string(side), "filled").Inc()

	k.logger.Debug("order-filled",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.String("order-id", result.OrderID),
		zap.String("filled-base", result.FilledBase.String()),
		zap.String("cost-quote", result.CostQuote.String()),
		zap.Int64("wallclock-ms", result.WallclockMS))

	return result, nil
}

// awaitFill polls the order until the venue reports it inactive. Market
// orders settle quickly; a poll budget overrun is surfaced as TIMEOUT and
// the order result, whatever it is, stays on the account.
func (k *KuCoin) awaitFill(ctx context.Context, orderID string) (*types.LegResult, error) {
	deadline := time.Now().Add(k.pollTimeout)
	ticker := time.NewTicker(k.pollInterval)
	defer ticker.Stop()

	for {
		data, err := k.request(ctx, http.MethodGet, "/api/v1/orders/"+orderID, nil, true)
		if err != nil {
			return nil, fmt.Errorf("poll order %s: %w", orderID, err)
		}

		var state struct {
			IsActive    bool   `json:"isActive"`
			DealSize    string `json:"dealSize"`
			DealFunds   string `json:"dealFunds"`
			Fee         string `json:"fee"`
			FeeCurrency string `json:"feeCurrency"`
		}

		err = json.Unmarshal(data, &state)
		if err != nil {
			return nil, fmt.Errorf("decode order state: %w", err)
		}

		if !state.IsActive {
			return &types.LegResult{
				OrderID:     orderID,
				FilledBase:  parseDecimal(state.DealSize),
				CostQuote:   parseDecimal(state.DealFunds),
				FeePaid:     parseDecimal(state.Fee),
				FeeCurrency: state.FeeCurrency,
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, &types.VenueError{
				Venue:   "kucoin",
				Kind:    types.ErrTimeout,
				Message: fmt.Sprintf("order %s still active after %s", orderID, k.pollTimeout),
			}
		}

		select {
		case <-ctx.Done():
			return nil, &types.VenueError{
				Venue: "kucoin",
				Kind:  types.ErrTimeout,
				Message: fmt.Sprintf("order %s poll interrupted: %v",
					orderID, ctx.Err()),
				Err: ctx.Err(),
			}
		case <-ticker.C:
		}
	}
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}

	return d
}

// SyncTime measures the server/client offset from the venue clock endpoint
// and stores it for subsequent signing.
func (k *KuCoin) SyncTime(ctx context.Context) (int64, error) {
	start := time.Now()
	data, err := k.request(ctx, http.MethodGet, "/api/v1/timestamp", nil, false)
	observeRequest("timestamp", start, err)

	if err != nil {
		return 0, fmt.Errorf("sync time: %w", err)
	}

	var serverMS int64

	err = json.Unmarshal(data, &serverMS)
	if err != nil {
		return 0, fmt.Errorf("decode server time: %w", err)
	}

	skew := serverMS - time.Now().UnixMilli()
	k.timeSkewMS.Store(skew)
	TimeSkewMS.Set(float64(skew))

	k.logger.Debug("time-synced", zap.Int64("skew-ms", skew))

	return skew, nil
}

// SymbolInfo fetches trading rules for one symbol, cached between cycles.
func (k *KuCoin) SymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error) {
	cacheKey := "symbol:" + symbol

	if k.metadataCache != nil {
		if cached, ok := k.metadataCache.Get(cacheKey); ok {
			if info, ok := cached.(*SymbolInfo); ok {
				MetadataCacheHitsTotal.Inc()
				return info, nil
			}
		}

		MetadataCacheMissesTotal.Inc()
	}

	start := time.Now()
	data, err := k.request(ctx, http.MethodGet, "/api/v2/symbols/"+symbol, nil, false)
	observeRequest("symbols", start, err)

	if err != nil {
		return nil, fmt.Errorf("fetch symbol %s: %w", symbol, err)
	}

	var raw struct {
		Symbol         string `json:"symbol"`
		BaseCurrency   string `json:"baseCurrency"`
		QuoteCurrency  string `json:"quoteCurrency"`
		PriceIncrement string `json:"priceIncrement"`
		BaseIncrement  string `json:"baseIncrement"`
		QuoteIncrement string `json:"quoteIncrement"`
		BaseMinSize    string `json:"baseMinSize"`
		MinFunds       string `json:"minFunds"`
		EnableTrading  bool   `json:"enableTrading"`
	}

	err = json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("decode symbol %s: %w", symbol, err)
	}

	info := &SymbolInfo{
		Symbol:         raw.Symbol,
		BaseCurrency:   raw.BaseCurrency,
		QuoteCurrency:  raw.QuoteCurrency,
		PriceIncrement: parseDecimal(raw.PriceIncrement),
		BaseIncrement:  parseDecimal(raw.BaseIncrement),
		QuoteIncrement: parseDecimal(raw.QuoteIncrement),
		BaseMinSize:    parseDecimal(raw.BaseMinSize),
		MinFunds:       parseDecimal(raw.MinFunds),
		EnableTrading:  raw.EnableTrading,
	}

	if k.metadataCache != nil {
		k.metadataCache.Set(cacheKey, info, symbolInfoTTL)
	}

	return info, nil
}

// Balance reports the available amount on the trade account. KuCoin splits
// balances across account types; only the trade account can fund orders.
func (k *KuCoin) Balance(ctx context.Context, currency string) (decimal.Decimal, error) {
	path := "/api/v1/accounts?currency=" + currency + "&type=trade"

	start := time.Now()
	data, err := k.request(ctx, http.MethodGet, path, nil, true)
	observeRequest("accounts", start, err)

	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch balance %s: %w", currency, err)
	}

	var accounts []struct {
		Available string `json:"available"`
	}

	err = json.Unmarshal(data, &accounts)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode accounts: %w", err)
	}

	total := decimal.Zero
	for _, acct := range accounts {
		total = total.Add(parseDecimal(acct.Available))
	}

	return total, nil
}

// request performs one REST call and unwraps the KuCoin envelope. Signed
// requests use the skew-corrected timestamp so a drifted local clock keeps
// signing inside the venue's acceptance window.
func (k *KuCoin) request(ctx context.Context, method, pathWithQuery string, body map[string]string, signed bool) (json.RawMessage, error) {
	var (
		payload []byte
		err     error
	)

	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, k.baseURL+pathWithQuery, strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if signed {
		ts := strconv.FormatInt(k.signingTimestamp(), 10)

		req.Header.Set("KC-API-KEY", k.apiKey)
		req.Header.Set("KC-API-SIGN", signBase64(k.apiSecret, ts+method+pathWithQuery+string(payload)))
		req.Header.Set("KC-API-TIMESTAMP", ts)
		req.Header.Set("KC-API-PASSPHRASE", k.passphrase)
		req.Header.Set("KC-API-KEY-VERSION", k.keyVersion)
	}

	resp, err := k.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &types.VenueError{
				Venue:   "kucoin",
				Kind:    types.ErrTimeout,
				Message: method + " " + pathWithQuery + " timed out",
				Err:     err,
			}
		}

		return nil, fmt.Errorf("%s %s: %w", method, pathWithQuery, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope

	err = json.Unmarshal(raw, &env)
	if err != nil {
		return nil, fmt.Errorf("decode envelope (status %d): %w", resp.StatusCode, err)
	}

	if env.Code != codeOK {
		return nil, k.mapError(env.Code, env.Msg)
	}

	return env.Data, nil
}

// signingTimestamp is local time shifted by the measured server skew plus
// the configured buffer, in milliseconds.
func (k *KuCoin) signingTimestamp() int64 {
	return time.Now().UnixMilli() + k.timeSkewMS.Load() + k.syncBufferMS
}

// mapError normalizes a venue error code to the engine taxonomy. Unmapped
// codes become REJECTED; operators get the raw code either way.
func (k *KuCoin) mapError(code, msg string) error {
	kind := types.ErrRejected

	switch code {
	case codeClockSkew:
		kind = types.ErrClockSkew
	case codeNoBalance:
		kind = types.ErrInsufficientBalance
	case codeBadParam:
		kind = types.ErrPrecision
	case codeOrderDenied:
		kind = types.ErrRejected
	}

	VenueErrorsTotal.WithLabelValues(code).Inc()

	return &types.VenueError{
		Venue:   "kucoin",
		Kind:    kind,
		Code:    code,
		Message: msg,
	}
}

func signBase64(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

package exchange

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"tradebot/pkg/ratelimit"
	"tradebot/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ============================================================
// КОНСТАНТЫ
// ============================================================

const (
	defaultBaseURL = "https://api.bitget.com"

	productType = "USDT-FUTURES"
	marginCoin  = "USDT"
	marginMode  = "crossed"

	successCode = "00000"

	// Категории rate limiter'а
	categoryOrder   = "order"
	categoryMarket  = "market"
	categoryAccount = "account"
)

// ============================================================
// КОНФИГУРАЦИЯ
// ============================================================

// BitgetClientConfig содержит настройки REST клиента Bitget
type BitgetClientConfig struct {
	BaseURL     string        // базовый URL API (default: https://api.bitget.com)
	MaxAttempts int           // максимум попыток запроса, включая первую (default: 3)
	RetryDelay  time.Duration // базовая пауза между попытками (default: 500ms)
}

// DefaultBitgetClientConfig возвращает конфигурацию по умолчанию
func DefaultBitgetClientConfig() BitgetClientConfig {
	return BitgetClientConfig{
		BaseURL:     defaultBaseURL,
		MaxAttempts: 3,
		RetryDelay:  500 * time.Millisecond,
	}
}

// newBitgetLimiter создаёт rate limiter с категориями под лимиты Bitget
func newBitgetLimiter() *ratelimit.MultiLimiter {
	ml := ratelimit.NewMultiLimiter()
	ml.Add(categoryOrder, 10, 20)
	ml.Add(categoryMarket, 20, 40)
	ml.Add(categoryAccount, 10, 20)
	return ml
}

// ============================================================
// КЛИЕНТ
// ============================================================

// BitgetClient представляет REST клиент Bitget USDT-M фьючерсов.
// Все подписанные запросы выполняются от имени одного пользователя,
// чьи ключи переданы в NewBitgetClient.
//
// Потокобезопасен: все поля неизменяемы после создания.
type BitgetClient struct {
	apiKey     string
	secretKey  string
	passphrase string

	baseURL     string
	httpClient  *HTTPClient
	limiter     *ratelimit.MultiLimiter
	maxAttempts int
	retryDelay  time.Duration
}

// NewBitgetClient создаёт клиента для заданных учётных данных.
// Возвращает ErrInvalidCredentials если ключи неполные.
func NewBitgetClient(apiKey, secretKey, passphrase string, httpClient *HTTPClient, config BitgetClientConfig) (*BitgetClient, error) {
	if apiKey == "" || secretKey == "" || passphrase == "" {
		return nil, ErrInvalidCredentials
	}

	if httpClient == nil {
		httpClient = NewHTTPClient(DefaultHTTPClientConfig())
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 500 * time.Millisecond
	}

	return &BitgetClient{
		apiKey:      apiKey,
		secretKey:   secretKey,
		passphrase:  passphrase,
		baseURL:     config.BaseURL,
		httpClient:  httpClient,
		limiter:     newBitgetLimiter(),
		maxAttempts: config.MaxAttempts,
		retryDelay:  config.RetryDelay,
	}, nil
}

// ============================================================
// HTTP СЛОЙ
// ============================================================

// apiResponse представляет стандартный конверт ответа Bitget
type apiResponse struct {
	Code string              `json:"code"`
	Msg  string              `json:"msg"`
	Data jsoniter.RawMessage `json:"data"`
}

// doRequest выполняет одну попытку запроса.
// Подпись генерируется заново на каждую попытку: timestamp входит в подпись.
func (c *BitgetClient) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}, signed bool) (jsoniter.RawMessage, *BitgetError) {
	var bodyStr string
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, &BitgetError{Kind: KindAPI, Message: "failed to marshal request body", Original: err}
		}
		bodyStr = string(raw)
	}

	queryStr := ""
	if len(query) > 0 {
		queryStr = query.Encode()
	}

	fullURL := c.baseURL + path
	if queryStr != "" {
		fullURL += "?" + queryStr
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bytes.NewBufferString(bodyStr))
	if err != nil {
		return nil, &BitgetError{Kind: KindAPI, Message: "failed to build request", Original: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("locale", "en-US")

	if signed {
		timestamp := strconv.FormatInt(utils.UnixMillis(), 10)
		signature := sign(c.secretKey, timestamp, method, path, queryStr, bodyStr)

		req.Header.Set("ACCESS-KEY", c.apiKey)
		req.Header.Set("ACCESS-SIGN", signature)
		req.Header.Set("ACCESS-TIMESTAMP", timestamp)
		req.Header.Set("ACCESS-PASSPHRASE", c.passphrase)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, &BitgetError{
			Kind:    KindAPI,
			Code:    strconv.Itoa(resp.StatusCode),
			Message: "unexpected response format",
			Original: fmt.Errorf("http %d: %s", resp.StatusCode,
				truncate(string(respBody), 200)),
		}
	}

	if envelope.Code != successCode {
		return nil, classifyResponse(envelope.Code, envelope.Msg)
	}

	return envelope.Data, nil
}

// request выполняет запрос с повторами.
//
// Политика повторов:
//   - rate limit: экспоненциальная пауза (delay * 2^attempt)
//   - ошибки авторизации: не повторяются, возвращаются сразу
//   - всё остальное (сеть, таймауты, API ошибки): фиксированная пауза
func (c *BitgetClient) request(ctx context.Context, category, method, path string, query url.Values, body interface{}, signed bool) (jsoniter.RawMessage, error) {
	var lastErr *BitgetError

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx, category); err != nil {
			return nil, classifyTransport(err)
		}

		data, berr := c.doRequest(ctx, method, path, query, body, signed)
		if berr == nil {
			return data, nil
		}

		if berr.Kind == KindAuth {
			return nil, berr
		}

		lastErr = berr
		if attempt == c.maxAttempts-1 {
			break
		}

		delay := c.retryDelay
		if berr.Kind == KindRateLimit {
			delay = c.retryDelay * time.Duration(1<<uint(attempt))
		}

		log.Printf("[WARN] bitget: %s %s failed (attempt %d/%d), retrying in %v: %v",
			method, path, attempt+1, c.maxAttempts, delay, berr)

		select {
		case <-ctx.Done():
			return nil, classifyTransport(ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

// ============================================================
// АККАУНТ
// ============================================================

type accountData struct {
	MarginCoin   string `json:"marginCoin"`
	Available    string `json:"available"`
	Equity       string `json:"accountEquity"`
	UnrealizedPL string `json:"unrealizedPL"`
}

// GetAccountInfo возвращает состояние USDT фьючерсного аккаунта
func (c *BitgetClient) GetAccountInfo(ctx context.Context) (*AccountInfo, error) {
	query := url.Values{}
	query.Set("productType", productType)

	data, err := c.request(ctx, categoryAccount, http.MethodGet, "/api/v2/mix/account/accounts", query, nil, true)
	if err != nil {
		return nil, err
	}

	var accounts []accountData
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, &BitgetError{Kind: KindAPI, Message: "failed to parse accounts", Original: err}
	}

	for _, acc := range accounts {
		if acc.MarginCoin == marginCoin {
			return &AccountInfo{
				MarginCoin:   acc.MarginCoin,
				Available:    toFloat(acc.Available),
				Equity:       toFloat(acc.Equity),
				UnrealizedPL: toFloat(acc.UnrealizedPL),
			}, nil
		}
	}

	return nil, &BitgetError{Kind: KindAPI, Message: "USDT account not found"}
}

// GetBalance возвращает свободный баланс USDT
func (c *BitgetClient) GetBalance(ctx context.Context) (float64, error) {
	info, err := c.GetAccountInfo(ctx)
	if err != nil {
		return 0, err
	}
	return info.Available, nil
}

// ============================================================
// ПОЗИЦИИ
// ============================================================

type positionData struct {
	Symbol       string `json:"symbol"`
	HoldSide     string `json:"holdSide"`
	Total        string `json:"total"`
	OpenPriceAvg string `json:"openPriceAvg"`
	MarkPrice    string `json:"markPrice"`
	Leverage     string `json:"leverage"`
	UnrealizedPL string `json:"unrealizedPL"`
	UTime        string `json:"uTime"`
}

func (p positionData) toPosition() Position {
	return Position{
		Symbol:        p.Symbol,
		Side:          p.HoldSide,
		Size:          toFloat(p.Total),
		EntryPrice:    toFloat(p.OpenPriceAvg),
		MarkPrice:     toFloat(p.MarkPrice),
		Leverage:      int(toFloat(p.Leverage)),
		UnrealizedPnl: toFloat(p.UnrealizedPL),
		UpdatedAt:     utils.FromUnixMillis(toInt64(p.UTime)),
	}
}

// GetPositions возвращает все открытые позиции (с ненулевым размером)
func (c *BitgetClient) GetPositions(ctx context.Context) ([]Position, error) {
	query := url.Values{}
	query.Set("productType", productType)
	query.Set("marginCoin", marginCoin)

	data, err := c.request(ctx, categoryAccount, http.MethodGet, "/api/v2/mix/position/all-position", query, nil, true)
	if err != nil {
		return nil, err
	}

	var raw []positionData
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &BitgetError{Kind: KindAPI, Message: "failed to parse positions", Original: err}
	}

	positions := make([]Position, 0, len(raw))
	for _, p := range raw {
		pos := p.toPosition()
		if pos.Size != 0 {
			positions = append(positions, pos)
		}
	}

	return positions, nil
}

// GetSinglePosition возвращает позицию по символу или nil если позиции нет
func (c *BitgetClient) GetSinglePosition(ctx context.Context, symbol string) (*Position, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("productType", productType)
	query.Set("marginCoin", marginCoin)

	data, err := c.request(ctx, categoryAccount, http.MethodGet, "/api/v2/mix/position/single-position", query, nil, true)
	if err != nil {
		return nil, err
	}

	var raw []positionData
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &BitgetError{Kind: KindAPI, Message: "failed to parse position", Original: err}
	}

	for _, p := range raw {
		pos := p.toPosition()
		if pos.Size != 0 {
			return &pos, nil
		}
	}

	return nil, nil
}

// ============================================================
// ОРДЕРА
// ============================================================

// OrderRequest описывает параметры размещаемого ордера
type OrderRequest struct {
	Symbol     string
	Side       string // SideBuy | SideSell
	OrderType  string // OrderTypeMarket | OrderTypeLimit
	Size       float64
	Price      float64 // только для limit
	ReduceOnly bool
	ClientOID  string
}

type placeOrderData struct {
	OrderID   string `json:"orderId"`
	ClientOID string `json:"clientOid"`
}

// PlaceOrder размещает ордер
func (c *BitgetClient) PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	body := map[string]string{
		"symbol":      req.Symbol,
		"productType": productType,
		"marginMode":  marginMode,
		"marginCoin":  marginCoin,
		"side":        req.Side,
		"orderType":   req.OrderType,
		"size":        strconv.FormatFloat(req.Size, 'f', -1, 64),
	}
	if req.OrderType == OrderTypeLimit {
		body["price"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
	}
	if req.ClientOID != "" {
		body["clientOid"] = req.ClientOID
	}
	if req.ReduceOnly {
		body["reduceOnly"] = "YES"
	}

	data, err := c.request(ctx, categoryOrder, http.MethodPost, "/api/v2/mix/order/place-order", nil, body, true)
	if err != nil {
		return nil, err
	}

	var result placeOrderData
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &BitgetError{Kind: KindAPI, Message: "failed to parse order response", Original: err}
	}

	return &Order{
		OrderID:    result.OrderID,
		ClientOID:  result.ClientOID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		OrderType:  req.OrderType,
		Size:       req.Size,
		Price:      req.Price,
		ReduceOnly: req.ReduceOnly,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// PlaceMarketOrder размещает рыночный ордер с автогенерацией clientOid
func (c *BitgetClient) PlaceMarketOrder(ctx context.Context, symbol, side string, size float64, reduceOnly bool) (*Order, error) {
	return c.PlaceOrder(ctx, OrderRequest{
		Symbol:     symbol,
		Side:       side,
		OrderType:  OrderTypeMarket,
		Size:       size,
		ReduceOnly: reduceOnly,
		ClientOID:  generateClientOID(),
	})
}

// CancelOrder отменяет ордер по ID
func (c *BitgetClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	body := map[string]string{
		"symbol":      symbol,
		"productType": productType,
		"orderId":     orderID,
	}

	_, err := c.request(ctx, categoryOrder, http.MethodPost, "/api/v2/mix/order/cancel-order", nil, body, true)
	return err
}

// CancelAllOrders отменяет все открытые ордера аккаунта
func (c *BitgetClient) CancelAllOrders(ctx context.Context) error {
	body := map[string]string{
		"productType": productType,
		"marginCoin":  marginCoin,
	}

	_, err := c.request(ctx, categoryOrder, http.MethodPost, "/api/v2/mix/order/cancel-all-orders", nil, body, true)
	return err
}

type orderData struct {
	OrderID    string `json:"orderId"`
	ClientOID  string `json:"clientOid"`
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	OrderType  string `json:"orderType"`
	Size       string `json:"size"`
	Price      string `json:"price"`
	PriceAvg   string `json:"priceAvg"`
	Status     string `json:"status"`
	ReduceOnly string `json:"reduceOnly"`
	CTime      string `json:"cTime"`
}

type orderListData struct {
	EntrustedList []orderData `json:"entrustedList"`
}

func (o orderData) toOrder() Order {
	price := toFloat(o.Price)
	if price == 0 {
		price = toFloat(o.PriceAvg)
	}
	return Order{
		OrderID:    o.OrderID,
		ClientOID:  o.ClientOID,
		Symbol:     o.Symbol,
		Side:       o.Side,
		OrderType:  o.OrderType,
		Size:       toFloat(o.Size),
		Price:      price,
		Status:     o.Status,
		ReduceOnly: o.ReduceOnly == "YES",
		CreatedAt:  utils.FromUnixMillis(toInt64(o.CTime)),
	}
}

// GetOpenOrders возвращает открытые ордера.
// Пустой symbol означает все символы.
func (c *BitgetClient) GetOpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	query := url.Values{}
	query.Set("productType", productType)
	if symbol != "" {
		query.Set("symbol", symbol)
	}

	data, err := c.request(ctx, categoryOrder, http.MethodGet, "/api/v2/mix/order/orders-pending", query, nil, true)
	if err != nil {
		return nil, err
	}

	return parseOrderList(data)
}

// GetOrderHistory возвращает историю ордеров
func (c *BitgetClient) GetOrderHistory(ctx context.Context, symbol string, limit int) ([]Order, error) {
	query := url.Values{}
	query.Set("productType", productType)
	if symbol != "" {
		query.Set("symbol", symbol)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	data, err := c.request(ctx, categoryOrder, http.MethodGet, "/api/v2/mix/order/orders-history", query, nil, true)
	if err != nil {
		return nil, err
	}

	return parseOrderList(data)
}

func parseOrderList(data jsoniter.RawMessage) ([]Order, error) {
	var list orderListData
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, &BitgetError{Kind: KindAPI, Message: "failed to parse orders", Original: err}
	}

	orders := make([]Order, 0, len(list.EntrustedList))
	for _, o := range list.EntrustedList {
		orders = append(orders, o.toOrder())
	}
	return orders, nil
}

// ============================================================
// НАСТРОЙКИ ТОРГОВЛИ
// ============================================================

// SetLeverage устанавливает плечо для символа
func (c *BitgetClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	body := map[string]string{
		"symbol":      symbol,
		"productType": productType,
		"marginCoin":  marginCoin,
		"leverage":    strconv.Itoa(leverage),
		"holdSide":    HoldSideLong,
	}

	_, err := c.request(ctx, categoryAccount, http.MethodPost, "/api/v2/mix/account/set-leverage", nil, body, true)
	return err
}

// SetPositionMode переключает аккаунт в one-way режим
func (c *BitgetClient) SetPositionMode(ctx context.Context) error {
	body := map[string]string{
		"productType": productType,
		"posMode":     "one_way_mode",
	}

	_, err := c.request(ctx, categoryAccount, http.MethodPost, "/api/v2/mix/account/set-position-mode", nil, body, true)
	return err
}

// ============================================================
// ПУБЛИЧНЫЕ РЫНОЧНЫЕ ДАННЫЕ
// ============================================================

type tickerData struct {
	Symbol string `json:"symbol"`
	LastPr string `json:"lastPr"`
	BidPr  string `json:"bidPr"`
	AskPr  string `json:"askPr"`
	Ts     string `json:"ts"`
}

// GetTicker возвращает текущий тикер символа (публичный endpoint, без подписи)
func (c *BitgetClient) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("productType", productType)

	data, err := c.request(ctx, categoryMarket, http.MethodGet, "/api/v2/mix/market/ticker", query, nil, false)
	if err != nil {
		return nil, err
	}

	var tickers []tickerData
	if err := json.Unmarshal(data, &tickers); err != nil {
		return nil, &BitgetError{Kind: KindAPI, Message: "failed to parse ticker", Original: err}
	}
	if len(tickers) == 0 {
		return nil, &BitgetError{Kind: KindAPI, Message: "empty ticker response"}
	}

	t := tickers[0]
	return &Ticker{
		Symbol:    t.Symbol,
		LastPrice: toFloat(t.LastPr),
		BidPrice:  toFloat(t.BidPr),
		AskPrice:  toFloat(t.AskPr),
		Timestamp: utils.FromUnixMillis(toInt64(t.Ts)),
	}, nil
}

type orderBookData struct {
	Asks [][]string `json:"asks"`
	Bids [][]string `json:"bids"`
	Ts   string     `json:"ts"`
}

// GetOrderBook возвращает стакан символа
func (c *BitgetClient) GetOrderBook(ctx context.Context, symbol string, limit int) (*OrderBook, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("productType", productType)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	data, err := c.request(ctx, categoryMarket, http.MethodGet, "/api/v2/mix/market/merge-depth", query, nil, false)
	if err != nil {
		return nil, err
	}

	var book orderBookData
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, &BitgetError{Kind: KindAPI, Message: "failed to parse order book", Original: err}
	}

	return &OrderBook{
		Symbol:    symbol,
		Bids:      parseLevels(book.Bids),
		Asks:      parseLevels(book.Asks),
		Timestamp: utils.FromUnixMillis(toInt64(book.Ts)),
	}, nil
}

func parseLevels(raw [][]string) []PriceLevel {
	levels := make([]PriceLevel, 0, len(raw))
	for _, l := range raw {
		if len(l) < 2 {
			continue
		}
		levels = append(levels, PriceLevel{
			Price:  toFloat(l[0]),
			Volume: toFloat(l[1]),
		})
	}
	return levels
}

// ============================================================
// ВСПОМОГАТЕЛЬНЫЕ ФУНКЦИИ
// ============================================================

func toFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func toInt64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func generateClientOID() string {
	return "tb" + strconv.FormatInt(time.Now().UnixNano(), 36)
}

package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"sentinel/pkg/ratelimit"
)

// Горячий путь монитора десериализует ответы биржи каждый тик
var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	gateBaseURL   = "https://api.gateio.ws"
	gateAPIPrefix = "/api/v4"
	gateWSURL     = "wss://fx-ws.gateio.ws/v4/ws/usdt"

	// Категории rate limiter
	gateLimitOrders = "orders" // приватные эндпоинты
	gateLimitMarket = "market" // публичные эндпоинты

	// Свежесть WebSocket-кэша тикеров
	tickerCacheTTL = 10 * time.Second
)

// Gate реализует интерфейс Exchange для Gate.io USDT perpetual futures
type Gate struct {
	apiKey    string
	secretKey string

	httpClient *http.Client
	limits     *ratelimit.MultiLimiter

	// WebSocket manager с автоматическим переподключением
	wsManager *WSReconnectManager

	// Callbacks и кэш тикеров из WebSocket
	tickerCallbacks map[string]func(*Ticker)
	cachedTickers   map[string]*Ticker
	subscribed      map[string]bool
	tickerMu        sync.RWMutex

	// Кэш множителей контрактов (не меняются на живом рынке)
	multipliers   map[string]float64
	multipliersMu sync.RWMutex

	// State
	connected bool
	closeChan chan struct{}
}

// NewGate создает новый экземпляр клиента Gate.io
// Использует глобальный HTTP клиент с connection pooling
func NewGate() *Gate {
	limits := ratelimit.NewMultiLimiter()
	limits.Add(gateLimitOrders, 10, 20)
	limits.Add(gateLimitMarket, 50, 100)

	return &Gate{
		httpClient:      GetGlobalHTTPClient().GetClient(),
		limits:          limits,
		tickerCallbacks: make(map[string]func(*Ticker)),
		cachedTickers:   make(map[string]*Ticker),
		subscribed:      make(map[string]bool),
		multipliers:     make(map[string]float64),
		closeChan:       make(chan struct{}),
	}
}

// sign создает подпись запроса к Gate.io API v4
//
// Строка подписи:
//
//	METHOD\nPATH\nQUERY\nSHA512(body)\nTIMESTAMP
//
// подписывается HMAC-SHA512 секретным ключом
func (g *Gate) sign(method, path, query, body, timestamp string) string {
	payloadHash := sha512.Sum512([]byte(body))
	message := method + "\n" + path + "\n" + query + "\n" +
		hex.EncodeToString(payloadHash[:]) + "\n" + timestamp

	h := hmac.New(sha512.New, []byte(g.secretKey))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// doRequest выполняет HTTP запрос к Gate.io API
func (g *Gate) doRequest(ctx context.Context, method, endpoint string, query url.Values, payload interface{}, signed bool) ([]byte, error) {
	// Приватные и публичные эндпоинты имеют раздельные лимиты
	category := gateLimitMarket
	if signed {
		category = gateLimitOrders
	}
	if err := g.limits.Wait(ctx, category); err != nil {
		return nil, err
	}

	path := gateAPIPrefix + endpoint
	queryString := ""
	if query != nil {
		queryString = query.Encode()
	}

	reqURL := gateBaseURL + path
	if queryString != "" {
		reqURL += "?" + queryString
	}

	var reqBody string
	if payload != nil {
		bodyBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = string(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, strings.NewReader(reqBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	if signed {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)
		req.Header.Set("KEY", g.apiKey)
		req.Header.Set("Timestamp", timestamp)
		req.Header.Set("SIGN", g.sign(method, path, queryString, reqBody, timestamp))
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr struct {
			Label   string `json:"label"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &apiErr)

		code := apiErr.Label
		if code == "" {
			code = strconv.Itoa(resp.StatusCode)
		}
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}

		return nil, &ExchangeError{
			Exchange: "gate",
			Code:     code,
			Message:  msg,
		}
	}

	return body, nil
}

func (g *Gate) Connect(apiKey, secret string) error {
	g.apiKey = apiKey
	g.secretKey = secret

	// Проверяем доступ запросом фьючерсного аккаунта
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := g.GetAccountValue(ctx); err != nil {
		return fmt.Errorf("failed to connect to Gate: %w", err)
	}

	g.connected = true
	return nil
}

func (g *Gate) GetName() string {
	return "gate"
}

func (g *Gate) GetAccountValue(ctx context.Context) (float64, error) {
	body, err := g.doRequest(ctx, http.MethodGet, "/futures/usdt/accounts", nil, nil, true)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Total     string `json:"total"`
		Available string `json:"available"`
		Currency  string `json:"currency"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, err
	}

	total, _ := strconv.ParseFloat(resp.Total, 64)
	return total, nil
}

func (g *Gate) GetPositions(ctx context.Context) ([]*ContractPosition, error) {
	body, err := g.doRequest(ctx, http.MethodGet, "/futures/usdt/positions", nil, nil, true)
	if err != nil {
		return nil, err
	}

	var resp []struct {
		Contract      string `json:"contract"`
		Size          int64  `json:"size"`
		EntryPrice    string `json:"entry_price"`
		MarkPrice     string `json:"mark_price"`
		Leverage      string `json:"leverage"`
		LiqPrice      string `json:"liq_price"`
		UnrealisedPnl string `json:"unrealised_pnl"`
		UpdateTime    int64  `json:"update_time"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	positions := make([]*ContractPosition, 0)
	for _, p := range resp {
		if p.Size == 0 {
			continue
		}

		entryPrice, _ := strconv.ParseFloat(p.EntryPrice, 64)
		markPrice, _ := strconv.ParseFloat(p.MarkPrice, 64)
		leverage, _ := strconv.ParseFloat(p.Leverage, 64)
		liqPrice, _ := strconv.ParseFloat(p.LiqPrice, 64)
		unrealisedPnl, _ := strconv.ParseFloat(p.UnrealisedPnl, 64)

		updatedAt := time.Now()
		if p.UpdateTime > 0 {
			updatedAt = time.Unix(p.UpdateTime, 0)
		}

		positions = append(positions, &ContractPosition{
			Contract:      p.Contract,
			Size:          float64(p.Size),
			EntryPrice:    entryPrice,
			MarkPrice:     markPrice,
			Leverage:      leverage,
			LiqPrice:      liqPrice,
			UnrealisedPnl: unrealisedPnl,
			UpdatedAt:     updatedAt,
		})
	}

	return positions, nil
}

func (g *Gate) GetTicker(ctx context.Context, contract string) (*Ticker, error) {
	query := url.Values{}
	query.Set("contract", contract)

	body, err := g.doRequest(ctx, http.MethodGet, "/futures/usdt/tickers", query, nil, false)
	if err != nil {
		return nil, err
	}

	var resp []struct {
		Contract   string `json:"contract"`
		Last       string `json:"last"`
		MarkPrice  string `json:"mark_price"`
		IndexPrice string `json:"index_price"`
		ChangePct  string `json:"change_percentage"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	if len(resp) == 0 {
		return nil, fmt.Errorf("ticker not found for %s", contract)
	}

	t := resp[0]
	last, _ := strconv.ParseFloat(t.Last, 64)
	markPrice, _ := strconv.ParseFloat(t.MarkPrice, 64)
	indexPrice, _ := strconv.ParseFloat(t.IndexPrice, 64)
	changePct, _ := strconv.ParseFloat(t.ChangePct, 64)

	return &Ticker{
		Contract:   t.Contract,
		Last:       last,
		MarkPrice:  markPrice,
		IndexPrice: indexPrice,
		ChangePct:  changePct,
		Timestamp:  time.Now(),
	}, nil
}

func (g *Gate) GetCandles(ctx context.Context, contract, interval string, limit int) ([]Candle, error) {
	query := url.Values{}
	query.Set("contract", contract)
	query.Set("interval", interval)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	body, err := g.doRequest(ctx, http.MethodGet, "/futures/usdt/candlesticks", query, nil, false)
	if err != nil {
		return nil, err
	}

	var resp []struct {
		T int64  `json:"t"`
		V int64  `json:"v"`
		C string `json:"c"`
		H string `json:"h"`
		L string `json:"l"`
		O string `json:"o"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	// Gate отдаёт свечи от старых к новым
	candles := make([]Candle, 0, len(resp))
	for _, c := range resp {
		open, _ := strconv.ParseFloat(c.O, 64)
		high, _ := strconv.ParseFloat(c.H, 64)
		low, _ := strconv.ParseFloat(c.L, 64)
		closePrice, _ := strconv.ParseFloat(c.C, 64)

		candles = append(candles, Candle{
			Timestamp: time.Unix(c.T, 0),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    float64(c.V),
		})
	}

	return candles, nil
}

func (g *Gate) GetContractMultiplier(ctx context.Context, contract string) (float64, error) {
	g.multipliersMu.RLock()
	mult, ok := g.multipliers[contract]
	g.multipliersMu.RUnlock()
	if ok {
		return mult, nil
	}

	body, err := g.doRequest(ctx, http.MethodGet, "/futures/usdt/contracts/"+contract, nil, nil, false)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Name             string `json:"name"`
		QuantoMultiplier string `json:"quanto_multiplier"`
		OrderSizeMin     int64  `json:"order_size_min"`
		OrderSizeMax     int64  `json:"order_size_max"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, err
	}

	mult, err = strconv.ParseFloat(resp.QuantoMultiplier, 64)
	if err != nil || mult <= 0 {
		return 0, fmt.Errorf("invalid quanto_multiplier %q for %s", resp.QuantoMultiplier, contract)
	}

	g.multipliersMu.Lock()
	g.multipliers[contract] = mult
	g.multipliersMu.Unlock()

	return mult, nil
}

func (g *Gate) PlaceReduceOnlyOrder(ctx context.Context, contract string, size float64) (string, error) {
	// Gate принимает только целые размеры в контрактах
	intSize := int64(size)
	if intSize == 0 {
		return "", fmt.Errorf("order size rounds to zero for %s", contract)
	}

	// Пользовательский ID: префикс t- обязателен, суффикс не длиннее 28 байт
	clientID := "t-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]

	payload := map[string]interface{}{
		"contract":    contract,
		"size":        intSize,
		"price":       "0", // маркет ордер
		"tif":         "ioc",
		"reduce_only": true,
		"text":        clientID,
	}

	body, err := g.doRequest(ctx, http.MethodPost, "/futures/usdt/orders", nil, payload, true)
	if err != nil {
		return "", err
	}

	var resp struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}

	if resp.ID == 0 {
		return "", fmt.Errorf("order id missing in response for %s", contract)
	}

	return strconv.FormatInt(resp.ID, 10), nil
}

func (g *Gate) GetOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	body, err := g.doRequest(ctx, http.MethodGet, "/futures/usdt/orders/"+orderID, nil, nil, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ID         int64   `json:"id"`
		Status     string  `json:"status"`
		FillPrice  string  `json:"fill_price"`
		Size       int64   `json:"size"`
		Left       int64   `json:"left"`
		FinishAs   string  `json:"finish_as"`
		CreateTime float64 `json:"create_time"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	fillPrice, _ := strconv.ParseFloat(resp.FillPrice, 64)

	return &OrderStatus{
		ID:        strconv.FormatInt(resp.ID, 10),
		Status:    resp.Status,
		FillPrice: fillPrice,
		Size:      float64(resp.Size),
		Left:      float64(resp.Left),
		FinishAs:  resp.FinishAs,
		CreatedAt: time.Unix(int64(resp.CreateTime), 0),
	}, nil
}

func (g *Gate) SubscribeTicker(contract string, callback func(*Ticker)) error {
	g.tickerMu.Lock()
	g.tickerCallbacks[contract] = callback
	already := g.subscribed[contract]
	g.subscribed[contract] = true
	g.tickerMu.Unlock()

	// Повторный вызов обновляет callback, но не дублирует подписку
	if already {
		return nil
	}

	// Создаём WSReconnectManager если ещё не создан
	if g.wsManager == nil {
		config := DefaultWSReconnectConfig()
		g.wsManager = NewWSReconnectManager("gate-futures", gateWSURL, config)

		g.wsManager.SetOnMessage(g.handleWSMessage)

		// Gate ожидает прикладной ping вместо протокольного фрейма
		g.wsManager.SetPingMessage(func() interface{} {
			return map[string]interface{}{
				"time":    time.Now().Unix(),
				"channel": "futures.ping",
			}
		})

		g.wsManager.SetOnConnect(func() {
			log.Printf("[gate] Futures WebSocket connected")
		})

		g.wsManager.SetOnDisconnect(func(err error) {
			if err != nil {
				log.Printf("[gate] Futures WebSocket disconnected: %v", err)
			}
		})

		if err := g.wsManager.Connect(); err != nil {
			return fmt.Errorf("failed to connect to WebSocket: %w", err)
		}
	}

	subMsg := map[string]interface{}{
		"time":    time.Now().Unix(),
		"channel": "futures.tickers",
		"event":   "subscribe",
		"payload": []string{contract},
	}

	// Подписка восстанавливается после переподключения
	g.wsManager.AddSubscription(subMsg)

	return g.wsManager.Send(subMsg)
}

// handleWSMessage обрабатывает одно сообщение из WebSocket
func (g *Gate) handleWSMessage(message []byte) {
	var msg struct {
		Channel string `json:"channel"`
		Event   string `json:"event"`
		Result  []struct {
			Contract   string `json:"contract"`
			Last       string `json:"last"`
			MarkPrice  string `json:"mark_price"`
			IndexPrice string `json:"index_price"`
			ChangePct  string `json:"change_percentage"`
		} `json:"result"`
	}

	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	if msg.Channel != "futures.tickers" || msg.Event != "update" {
		return
	}

	for _, r := range msg.Result {
		last, _ := strconv.ParseFloat(r.Last, 64)
		markPrice, _ := strconv.ParseFloat(r.MarkPrice, 64)
		indexPrice, _ := strconv.ParseFloat(r.IndexPrice, 64)
		changePct, _ := strconv.ParseFloat(r.ChangePct, 64)

		ticker := &Ticker{
			Contract:   r.Contract,
			Last:       last,
			MarkPrice:  markPrice,
			IndexPrice: indexPrice,
			ChangePct:  changePct,
			Timestamp:  time.Now(),
		}

		g.tickerMu.Lock()
		g.cachedTickers[r.Contract] = ticker
		callback := g.tickerCallbacks[r.Contract]
		g.tickerMu.Unlock()

		if callback != nil {
			callback(ticker)
		}
	}
}

func (g *Gate) CachedTicker(contract string) (*Ticker, bool) {
	g.tickerMu.RLock()
	ticker, ok := g.cachedTickers[contract]
	g.tickerMu.RUnlock()

	if !ok || time.Since(ticker.Timestamp) > tickerCacheTTL {
		return nil, false
	}
	return ticker, true
}

func (g *Gate) Close() error {
	// Закрываем closeChan только если он ещё не закрыт
	select {
	case <-g.closeChan:
		// Уже закрыт
	default:
		close(g.closeChan)
	}

	if g.wsManager != nil {
		g.wsManager.Close()
		g.wsManager = nil
	}

	g.connected = false
	return nil
}

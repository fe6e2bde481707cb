package feed

import (
	"fmt"
	"log"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"tradebot/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ============================================================
// Публичный рыночный фид Bitget
// ============================================================

const (
	defaultWSURL = "wss://ws.bitget.com/v2/ws/public"

	instTypeFutures = "USDT-FUTURES"
	channelTicker   = "ticker"

	pingMessage = "ping"
	pongMessage = "pong"
)

// TickSink принимает разобранные тики. Реализуется шиной тиков.
type TickSink interface {
	Publish(tick models.Tick)
}

// Config - настройки фида
type Config struct {
	WSURL     string
	Symbols   []string
	Reconnect ReconnectConfig
}

// DefaultConfig возвращает настройки фида по умолчанию
func DefaultConfig(symbols []string) Config {
	return Config{
		WSURL:     defaultWSURL,
		Symbols:   symbols,
		Reconnect: DefaultReconnectConfig(),
	}
}

// subscribeRequest - запрос подписки на каналы
type subscribeRequest struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

type subscribeArg struct {
	InstType string `json:"instType"`
	Channel  string `json:"channel"`
	InstID   string `json:"instId"`
}

// pushMessage - входящее сообщение фида. Служебные ответы несут
// event, рыночные данные - action + data.
type pushMessage struct {
	Event  string              `json:"event"`
	Code   interface{}         `json:"code"`
	Msg    string              `json:"msg"`
	Action string              `json:"action"`
	Arg    subscribeArg        `json:"arg"`
	Data   jsoniter.RawMessage `json:"data"`
}

type tickerPush struct {
	InstID string `json:"instId"`
	LastPr string `json:"lastPr"`
	Ts     string `json:"ts"`
}

// Feed слушает публичный WebSocket биржи и транслирует тики в шину.
// Один фид обслуживает все символы всех запущенных ботов.
type Feed struct {
	cfg  Config
	sink TickSink
	conn *wsConn
}

// New создает фид. Подключение происходит в Start.
func New(cfg Config, sink TickSink) *Feed {
	if cfg.WSURL == "" {
		cfg.WSURL = defaultWSURL
	}
	if cfg.Reconnect.ConnectTimeout <= 0 {
		cfg.Reconnect = DefaultReconnectConfig()
	}

	f := &Feed{cfg: cfg, sink: sink}
	f.conn = newWSConn(cfg.WSURL, cfg.Reconnect, f.handleMessage, nil)
	return f
}

// Start подписывается на тикеры всех символов и устанавливает соединение
func (f *Feed) Start() error {
	if len(f.cfg.Symbols) == 0 {
		return fmt.Errorf("feed: no symbols to subscribe")
	}

	f.conn.addSubscription(tickerSubscription(f.cfg.Symbols))
	if err := f.conn.Connect(); err != nil {
		return fmt.Errorf("feed: connect failed: %w", err)
	}
	return nil
}

// Close останавливает фид
func (f *Feed) Close() error {
	return f.conn.Close()
}

// IsConnected возвращает состояние соединения
func (f *Feed) IsConnected() bool {
	return f.conn.IsConnected()
}

// tickerSubscription строит подписку на канал ticker для всех символов
func tickerSubscription(symbols []string) subscribeRequest {
	args := make([]subscribeArg, 0, len(symbols))
	for _, s := range symbols {
		args = append(args, subscribeArg{
			InstType: instTypeFutures,
			Channel:  channelTicker,
			InstID:   models.NormalizeSymbol(s),
		})
	}
	return subscribeRequest{Op: "subscribe", Args: args}
}

// handleMessage разбирает входящее сообщение и публикует тики
func (f *Feed) handleMessage(raw []byte) {
	if string(raw) == pongMessage {
		return
	}

	var msg pushMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("[WARN] feed: malformed message: %v", err)
		return
	}

	switch {
	case msg.Event == "error":
		log.Printf("[ERROR] feed: subscribe error %v: %s", msg.Code, msg.Msg)
	case msg.Event != "":
		// subscribe/unsubscribe подтверждения
	case msg.Arg.Channel == channelTicker && len(msg.Data) > 0:
		f.handleTicker(msg.Data)
	}
}

func (f *Feed) handleTicker(data jsoniter.RawMessage) {
	var tickers []tickerPush
	if err := json.Unmarshal(data, &tickers); err != nil {
		log.Printf("[WARN] feed: malformed ticker payload: %v", err)
		return
	}

	for _, t := range tickers {
		tick, ok := t.toTick()
		if !ok {
			continue
		}
		f.sink.Publish(tick)
	}
}

// toTick переводит push тикера в доменный тик. Нулевая или
// нечисловая цена отбрасывается.
func (t *tickerPush) toTick() (models.Tick, bool) {
	price, err := strconv.ParseFloat(t.LastPr, 64)
	if err != nil || price <= 0 {
		return models.Tick{}, false
	}

	ts := time.Now().UTC()
	if ms, err := strconv.ParseInt(t.Ts, 10, 64); err == nil && ms > 0 {
		ts = time.UnixMilli(ms).UTC()
	}

	return models.Tick{
		Symbol: models.NormalizeSymbol(t.InstID),
		Price:  price,
		Time:   ts,
	}, true
}

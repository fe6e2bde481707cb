package feed

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================
// WebSocket соединение с переподключением
// ============================================================

// ReconnectConfig - настройки переподключения WebSocket
type ReconnectConfig struct {
	InitialDelay   time.Duration // стартовая задержка перед переподключением
	MaxDelay       time.Duration // потолок exponential backoff
	MaxRetries     int           // попыток подряд до отказа (0 = без лимита)
	ConnectTimeout time.Duration
	PingInterval   time.Duration // Bitget требует ping не реже раза в 30s
	WriteTimeout   time.Duration
}

// DefaultReconnectConfig возвращает настройки по умолчанию: 2s, 4s, 8s, 16s
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		InitialDelay:   2 * time.Second,
		MaxDelay:       16 * time.Second,
		MaxRetries:     0,
		ConnectTimeout: 10 * time.Second,
		PingInterval:   25 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// ConnState - состояние соединения
type ConnState int32

const (
	ConnDisconnected ConnState = iota
	ConnConnecting
	ConnConnected
	ConnReconnecting
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnDisconnected:
		return "disconnected"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnReconnecting:
		return "reconnecting"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// wsConn держит одно публичное WebSocket соединение с биржей и
// автоматически переподключается при разрывах.
//
// После каждого успешного подключения заново отправляются все
// накопленные подписки, поэтому потребителю достаточно подписаться
// один раз. Живость соединения поддерживается текстовым "ping":
// Bitget закрывает соединение без ping дольше 30 секунд.
type wsConn struct {
	url string
	cfg ReconnectConfig

	conn   *websocket.Conn
	connMu sync.RWMutex

	state      int32 // atomic ConnState
	retryCount int32 // atomic

	closeOnce sync.Once
	closeChan chan struct{}

	onMessage func([]byte)
	onConnect func()

	subsMu sync.RWMutex
	subs   []subscribeRequest
}

func newWSConn(url string, cfg ReconnectConfig, onMessage func([]byte), onConnect func()) *wsConn {
	return &wsConn{
		url:       url,
		cfg:       cfg,
		closeChan: make(chan struct{}),
		onMessage: onMessage,
		onConnect: onConnect,
	}
}

// addSubscription запоминает подписку для восстановления после разрыва
func (w *wsConn) addSubscription(sub subscribeRequest) {
	w.subsMu.Lock()
	w.subs = append(w.subs, sub)
	w.subsMu.Unlock()
}

func (w *wsConn) State() ConnState {
	return ConnState(atomic.LoadInt32(&w.state))
}

func (w *wsConn) IsConnected() bool {
	return w.State() == ConnConnected
}

// Connect устанавливает соединение и запускает служебные goroutines
func (w *wsConn) Connect() error {
	select {
	case <-w.closeChan:
		return fmt.Errorf("connection is closed")
	default:
	}

	atomic.StoreInt32(&w.state, int32(ConnConnecting))
	if err := w.dial(); err != nil {
		atomic.StoreInt32(&w.state, int32(ConnDisconnected))
		return err
	}

	w.afterConnect()
	log.Printf("[INFO] feed: connected to %s", w.url)
	return nil
}

func (w *wsConn) dial() error {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.ConnectTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: w.cfg.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", w.url, err)
	}

	w.connMu.Lock()
	w.conn = conn
	w.connMu.Unlock()

	if err := w.resubscribe(); err != nil {
		log.Printf("[WARN] feed: resubscribe failed: %v", err)
	}
	return nil
}

func (w *wsConn) afterConnect() {
	atomic.StoreInt32(&w.state, int32(ConnConnected))
	atomic.StoreInt32(&w.retryCount, 0)

	if w.onConnect != nil {
		w.onConnect()
	}

	go w.readPump()
	go w.pingPump()
}

func (w *wsConn) resubscribe() error {
	w.subsMu.RLock()
	subs := make([]subscribeRequest, len(w.subs))
	copy(subs, w.subs)
	w.subsMu.RUnlock()

	if len(subs) == 0 {
		return nil
	}

	for _, sub := range subs {
		if err := w.writeJSON(sub); err != nil {
			return err
		}
	}
	log.Printf("[INFO] feed: resubscribed to %d channels", len(subs))
	return nil
}

// readPump читает сообщения до разрыва соединения
func (w *wsConn) readPump() {
	for {
		select {
		case <-w.closeChan:
			return
		default:
		}

		w.connMu.RLock()
		conn := w.conn
		w.connMu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			w.handleDisconnect(err)
			return
		}

		if w.onMessage != nil {
			w.onMessage(message)
		}
	}
}

// pingPump шлет текстовый "ping" для поддержания соединения
func (w *wsConn) pingPump() {
	ticker := time.NewTicker(w.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.closeChan:
			return
		case <-ticker.C:
			if w.State() != ConnConnected {
				return
			}
			if err := w.writeMessage(websocket.TextMessage, []byte(pingMessage)); err != nil {
				log.Printf("[WARN] feed: ping failed: %v", err)
				w.handleDisconnect(err)
				return
			}
		}
	}
}

func (w *wsConn) handleDisconnect(err error) {
	select {
	case <-w.closeChan:
		return
	default:
	}

	// Разрыв обрабатывается один раз: readPump и pingPump могут
	// заметить его одновременно
	state := w.State()
	if state == ConnReconnecting || state == ConnClosed {
		return
	}
	atomic.StoreInt32(&w.state, int32(ConnReconnecting))

	w.connMu.Lock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connMu.Unlock()

	if err != nil {
		log.Printf("[WARN] feed: disconnected: %v", err)
	}

	go w.reconnectLoop()
}

// reconnectLoop переподключается с exponential backoff
func (w *wsConn) reconnectLoop() {
	delay := w.cfg.InitialDelay

	for {
		select {
		case <-w.closeChan:
			return
		default:
		}

		retry := atomic.AddInt32(&w.retryCount, 1)
		if w.cfg.MaxRetries > 0 && int(retry) > w.cfg.MaxRetries {
			log.Printf("[ERROR] feed: giving up after %d reconnect attempts", w.cfg.MaxRetries)
			atomic.StoreInt32(&w.state, int32(ConnDisconnected))
			return
		}

		log.Printf("[INFO] feed: reconnecting in %v (attempt %d)", delay, retry)
		select {
		case <-w.closeChan:
			return
		case <-time.After(delay):
		}

		if err := w.dial(); err != nil {
			log.Printf("[WARN] feed: reconnect failed: %v", err)
			delay *= 2
			if delay > w.cfg.MaxDelay {
				delay = w.cfg.MaxDelay
			}
			continue
		}

		w.afterConnect()
		log.Printf("[INFO] feed: reconnected")
		return
	}
}

func (w *wsConn) writeJSON(v interface{}) error {
	w.connMu.RLock()
	defer w.connMu.RUnlock()
	if w.conn == nil {
		return fmt.Errorf("no connection")
	}
	w.conn.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout))
	return w.conn.WriteJSON(v)
}

func (w *wsConn) writeMessage(messageType int, data []byte) error {
	w.connMu.RLock()
	defer w.connMu.RUnlock()
	if w.conn == nil {
		return fmt.Errorf("no connection")
	}
	w.conn.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout))
	return w.conn.WriteMessage(messageType, data)
}

// Send отправляет произвольное сообщение в соединение
func (w *wsConn) Send(v interface{}) error {
	if w.State() != ConnConnected {
		return fmt.Errorf("not connected (state: %s)", w.State())
	}
	return w.writeJSON(v)
}

// Close закрывает соединение и останавливает переподключения
func (w *wsConn) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closeChan)
		atomic.StoreInt32(&w.state, int32(ConnClosed))

		w.connMu.Lock()
		if w.conn != nil {
			err = w.conn.Close()
			w.conn = nil
		}
		w.connMu.Unlock()
	})
	return err
}

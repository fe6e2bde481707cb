package exchange

import (
	"sync"
)

// ============================================================
// КЕШ КЛИЕНТОВ
// ============================================================

// ClientCache кеширует BitgetClient'ы по учётным данным, чтобы не создавать
// нового клиента на каждый запуск бота. Все клиенты разделяют один
// HTTP клиент и его connection pool.
//
// Потокобезопасен.
type ClientCache struct {
	mu         sync.Mutex
	clients    map[string]*BitgetClient
	httpClient *HTTPClient
	config     BitgetClientConfig
}

// NewClientCache создаёт кеш клиентов
func NewClientCache(httpClient *HTTPClient, config BitgetClientConfig) *ClientCache {
	if httpClient == nil {
		httpClient = NewHTTPClient(DefaultHTTPClientConfig())
	}
	return &ClientCache{
		clients:    make(map[string]*BitgetClient),
		httpClient: httpClient,
		config:     config,
	}
}

// Get возвращает клиента для заданных учётных данных, создавая при первом
// обращении. Возвращает ErrInvalidCredentials если ключи неполные.
func (cc *ClientCache) Get(apiKey, secretKey, passphrase string) (*BitgetClient, error) {
	if apiKey == "" || secretKey == "" || passphrase == "" {
		return nil, ErrInvalidCredentials
	}

	cacheKey := apiKey + ":" + secretKey

	cc.mu.Lock()
	defer cc.mu.Unlock()

	if client, ok := cc.clients[cacheKey]; ok {
		return client, nil
	}

	client, err := NewBitgetClient(apiKey, secretKey, passphrase, cc.httpClient, cc.config)
	if err != nil {
		return nil, err
	}

	cc.clients[cacheKey] = client
	return client, nil
}

// Invalidate удаляет клиента из кеша (например, после смены ключей)
func (cc *ClientCache) Invalidate(apiKey, secretKey string) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	delete(cc.clients, apiKey+":"+secretKey)
}

// Len возвращает количество закешированных клиентов
func (cc *ClientCache) Len() int {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return len(cc.clients)
}

// Close закрывает разделяемый HTTP клиент
func (cc *ClientCache) Close() {
	cc.httpClient.Close()
}

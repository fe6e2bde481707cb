package bot

import (
	"sync"

	"tradebot/internal/models"
)

// defaultTickBuffer - размер буфера подписчика по умолчанию
const defaultTickBuffer = 100

// TickBus раздает рыночные тики торговым циклам.
//
// Один производитель (поток маркет-даты), N подписчиков (по одному
// на запущенного бота). Publish никогда не блокируется: если буфер
// подписчика полон, самый свежий тик отбрасывается с метрикой
// переполнения. Отставший бот пропускает тики, а не тормозит остальных.
type TickBus struct {
	mu   sync.RWMutex
	subs map[int64]chan models.Tick
	size int
}

// NewTickBus создает шину с заданным размером буфера подписчика
func NewTickBus(bufferSize int) *TickBus {
	if bufferSize <= 0 {
		bufferSize = defaultTickBuffer
	}
	return &TickBus{
		subs: make(map[int64]chan models.Tick),
		size: bufferSize,
	}
}

// Subscribe создает канал тиков для подписчика.
// Повторная подписка того же ID заменяет старый канал.
func (b *TickBus) Subscribe(id int64) <-chan models.Tick {
	ch := make(chan models.Tick, b.size)

	b.mu.Lock()
	if old, ok := b.subs[id]; ok {
		close(old)
	}
	b.subs[id] = ch
	b.mu.Unlock()

	return ch
}

// Unsubscribe удаляет подписчика и закрывает его канал
func (b *TickBus) Unsubscribe(id int64) {
	b.mu.Lock()
	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
	b.mu.Unlock()
}

// Publish рассылает тик всем подписчикам без блокировки
func (b *TickBus) Publish(tick models.Tick) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- tick:
		default:
			RecordBufferOverflow("tick")
			RecordTickDiscarded("buffer_full")
		}
	}
}

// Len возвращает число подписчиков
func (b *TickBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

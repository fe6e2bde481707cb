package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для алертов на переполнение буферов и остановки ботов

// ============ Метрики тиков ============

// TicksProcessed - обработанные тики по символам
var TicksProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "loop",
		Name:      "ticks_processed_total",
		Help:      "Total number of market ticks processed by bot loops",
	},
	[]string{"symbol"},
)

// TicksDiscarded - отброшенные тики (чужой символ, некорректная цена, переполнение)
var TicksDiscarded = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "loop",
		Name:      "ticks_discarded_total",
		Help:      "Total number of market ticks discarded before processing",
	},
	[]string{"reason"},
)

// ============ Метрики сигналов и ордеров ============

// SignalsGenerated - сигналы стратегий по действиям
var SignalsGenerated = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "loop",
		Name:      "signals_total",
		Help:      "Total number of strategy signals by action",
	},
	[]string{"strategy", "action"},
)

// OrdersPlaced - размещенные ордера
var OrdersPlaced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "loop",
		Name:      "orders_total",
		Help:      "Total number of orders placed by side and result",
	},
	[]string{"side", "result"},
)

// RiskBlocks - блокировки входов риск-контролем
var RiskBlocks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "risk",
		Name:      "blocks_total",
		Help:      "Total number of entries blocked by the risk gate",
	},
	[]string{"reason"},
)

// ============ Метрики состояния ============

// ActiveLoops - количество живых торговых циклов
var ActiveLoops = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradebot",
		Subsystem: "orchestrator",
		Name:      "active_loops",
		Help:      "Number of currently running bot loops",
	},
)

// LoopErrors - ошибки итераций цикла
var LoopErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "loop",
		Name:      "errors_total",
		Help:      "Total number of bot loop iteration errors",
	},
	[]string{"stage"},
)

// LoopStops - остановки циклов по причинам
var LoopStops = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "loop",
		Name:      "stops_total",
		Help:      "Total number of bot loop stops by reason",
	},
	[]string{"reason"},
)

// ============ Метрики буферов ============

// ChannelBufferOverflow - переполнения очередей
var ChannelBufferOverflow = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "channels",
		Name:      "buffer_overflow_total",
		Help:      "Total number of dropped messages due to full channel buffers",
	},
	[]string{"channel"},
)

// ============ Функции записи ============

// RecordTickProcessed фиксирует обработанный тик
func RecordTickProcessed(symbol string) {
	TicksProcessed.WithLabelValues(symbol).Inc()
}

// RecordTickDiscarded фиксирует отброшенный тик
func RecordTickDiscarded(reason string) {
	TicksDiscarded.WithLabelValues(reason).Inc()
}

// RecordSignal фиксирует сигнал стратегии
func RecordSignal(strategy, action string) {
	SignalsGenerated.WithLabelValues(strategy, action).Inc()
}

// RecordOrder фиксирует результат размещения ордера
func RecordOrder(side, result string) {
	OrdersPlaced.WithLabelValues(side, result).Inc()
}

// RecordRiskBlock фиксирует блокировку входа
func RecordRiskBlock(reason string) {
	RiskBlocks.WithLabelValues(reason).Inc()
}

// RecordLoopError фиксирует ошибку итерации
func RecordLoopError(stage string) {
	LoopErrors.WithLabelValues(stage).Inc()
}

// RecordLoopStop фиксирует остановку цикла
func RecordLoopStop(reason string) {
	LoopStops.WithLabelValues(reason).Inc()
}

// RecordBufferOverflow фиксирует переполнение канала
func RecordBufferOverflow(channel string) {
	ChannelBufferOverflow.WithLabelValues(channel).Inc()
}

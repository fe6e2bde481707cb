package utils

import (
	"math"
)

// math.go - математические утилиты для торговых операций
//
// Назначение:
// Вспомогательные функции для расчёта объёмов и PNL.
// Все функции являются чистыми (pure functions) без побочных эффектов.
//
// Функции:
// - RoundToLotSize: округление объёма до шага биржи
// - CalculateOrderSize: расчёт размера ордера из баланса и плеча
// - CalculatePNL: расчёт прибыли/убытка по позиции

// RoundToLotSize округляет значение ВНИЗ до ближайшего кратного lotSize.
//
// Используется для округления объёма ордера до минимального шага биржи.
// Округление вниз гарантирует, что мы не превысим доступные средства.
//
// Примеры:
//   - RoundToLotSize(0.123456, 0.001) = 0.123
//   - RoundToLotSize(1.999, 0.01) = 1.99
func RoundToLotSize(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	return math.Floor(value/lotSize) * lotSize
}

// RoundToLotSizeUp округляет значение ВВЕРХ до ближайшего кратного lotSize.
//
// Используется когда нужно гарантировать минимальный объём (например, minQty).
func RoundToLotSizeUp(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	return math.Ceil(value/lotSize) * lotSize
}

// CalculateOrderSize расчитывает размер ордера в монетах актива.
//
// Формула:
//
//	size = (free_balance × percent × leverage) / price
//
// Результат округляется вниз до minOrderSize и никогда не меньше minOrderSize
// (если баланс вообще позволяет войти).
//
// Параметры:
//   - freeBalance: доступный баланс в USDT
//   - percent: доля баланса для позиции (0.1 = 10%)
//   - leverage: плечо (>= 1)
//   - price: текущая цена инструмента
//   - minOrderSize: минимальный размер ордера биржи для инструмента
//
// Возвращает 0 если входные данные некорректны.
func CalculateOrderSize(freeBalance, percent float64, leverage int, price, minOrderSize float64) float64 {
	if freeBalance <= 0 || percent <= 0 || price <= 0 {
		return 0
	}
	if leverage < 1 {
		leverage = 1
	}

	size := freeBalance * percent * float64(leverage) / price
	size = RoundToLotSize(size, minOrderSize)

	if size < minOrderSize {
		size = minOrderSize
	}
	return size
}

// CalculatePNL расчитывает прибыль/убыток по позиции.
//
// Формулы:
//   - Long PNL = (P_close - P_open) × qty
//   - Short PNL = (P_open - P_close) × qty
//
// Параметры:
//   - side: "long" или "short"
//   - entryPrice: цена входа
//   - currentPrice: текущая/выходная цена
//   - quantity: объём позиции
func CalculatePNL(side string, entryPrice, currentPrice, quantity float64) float64 {
	if quantity <= 0 {
		return 0
	}

	switch side {
	case "long":
		return (currentPrice - entryPrice) * quantity
	case "short":
		return (entryPrice - currentPrice) * quantity
	default:
		return 0
	}
}

// Abs возвращает абсолютное значение числа.
func Abs(x float64) float64 {
	return math.Abs(x)
}

// ClampInt ограничивает целое значение диапазоном [min, max].
func ClampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Clamp ограничивает значение диапазоном [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

package exchange

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// ============================================================
// СВЕЧИ (ИСТОРИЧЕСКИЕ ДАННЫЕ)
// ============================================================

const (
	// Bitget отдаёт максимум 1000 свечей за один запрос
	maxCandlesPerRequest = 1000

	// Пауза между страницами при пагинации истории
	candlePageDelay = 300 * time.Millisecond
)

// granularityMap переводит таймфрейм в формат Bitget.
// Минутные интервалы строчными, часовые и выше — с заглавной буквой.
var granularityMap = map[string]string{
	"1m":  "1m",
	"3m":  "3m",
	"5m":  "5m",
	"15m": "15m",
	"30m": "30m",
	"1h":  "1H",
	"4h":  "4H",
	"6h":  "6H",
	"12h": "12H",
	"1d":  "1D",
	"1w":  "1W",
}

// Granularity возвращает обозначение таймфрейма в формате Bitget.
// Неизвестный таймфрейм возвращается как есть.
func Granularity(timeframe string) string {
	if g, ok := granularityMap[timeframe]; ok {
		return g
	}
	return timeframe
}

// GetCandles возвращает до limit свечей символа, завершающихся не позже endTime.
// Нулевой endTime означает "до текущего момента". Свечи приходят
// в хронологическом порядке (старые первыми).
func (c *BitgetClient) GetCandles(ctx context.Context, symbol, timeframe string, endTime time.Time, limit int) ([]Candle, error) {
	if limit <= 0 || limit > maxCandlesPerRequest {
		limit = maxCandlesPerRequest
	}

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("productType", productType)
	query.Set("granularity", Granularity(timeframe))
	query.Set("limit", strconv.Itoa(limit))
	if !endTime.IsZero() {
		query.Set("endTime", strconv.FormatInt(endTime.UnixMilli(), 10))
	}

	data, err := c.request(ctx, categoryMarket, http.MethodGet, "/api/v2/mix/market/candles", query, nil, false)
	if err != nil {
		return nil, err
	}

	// Каждая свеча приходит массивом строк:
	// [ts, open, high, low, close, baseVolume, quoteVolume]
	var raw [][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &BitgetError{Kind: KindAPI, Message: "failed to parse candles", Original: err}
	}

	candles := make([]Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		candles = append(candles, Candle{
			Timestamp: time.UnixMilli(toInt64(row[0])).UTC(),
			Open:      toFloat(row[1]),
			High:      toFloat(row[2]),
			Low:       toFloat(row[3]),
			Close:     toFloat(row[4]),
			Volume:    toFloat(row[5]),
		})
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	return candles, nil
}

// GetAllCandles собирает историю свечей от start до настоящего момента,
// листая страницы назад от текущего момента. Дубликаты по timestamp
// отбрасываются. maxCount ограничивает общее число свечей (0 = без лимита).
//
// Между страницами выдерживается пауза, чтобы не упереться в rate limit.
func (c *BitgetClient) GetAllCandles(ctx context.Context, symbol, timeframe string, start time.Time, maxCount int) ([]Candle, error) {
	seen := make(map[int64]struct{})
	var all []Candle

	endTime := time.Time{} // первая страница: самые свежие свечи

	for {
		page, err := c.GetCandles(ctx, symbol, timeframe, endTime, maxCandlesPerRequest)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		added := 0
		for _, candle := range page {
			ts := candle.Timestamp.UnixMilli()
			if _, dup := seen[ts]; dup {
				continue
			}
			seen[ts] = struct{}{}
			all = append(all, candle)
			added++
		}

		oldest := page[0].Timestamp
		if added == 0 || !oldest.After(start) {
			break
		}
		if maxCount > 0 && len(all) >= maxCount {
			break
		}

		// Следующая страница заканчивается перед самой старой полученной свечой
		endTime = oldest.Add(-time.Millisecond)

		select {
		case <-ctx.Done():
			return nil, classifyTransport(ctx.Err())
		case <-time.After(candlePageDelay):
		}
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})

	// Отрезаем свечи старше запрошенного начала
	if !start.IsZero() {
		cut := sort.Search(len(all), func(i int) bool {
			return !all[i].Timestamp.Before(start)
		})
		all = all[cut:]
	}
	if maxCount > 0 && len(all) > maxCount {
		all = all[len(all)-maxCount:]
	}

	return all, nil
}

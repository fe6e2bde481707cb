package exchange

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Ошибки клиента биржи
var (
	// ErrInvalidCredentials - ключи отсутствуют или неполные, запрос к бирже не выполнялся
	ErrInvalidCredentials = errors.New("api credentials are missing or incomplete")
)

// ErrorKind классифицирует ошибку биржи и определяет retry-политику
type ErrorKind string

const (
	// KindNetwork - ошибка транспорта (соединение, DNS)
	KindNetwork ErrorKind = "network"
	// KindTimeout - нет ответа в пределах дедлайна
	KindTimeout ErrorKind = "timeout"
	// KindAuth - биржа отклонила credentials; НИКОГДА не retry'ится
	KindAuth ErrorKind = "authentication"
	// KindRateLimit - превышена частота запросов; retry с экспоненциальным backoff
	KindRateLimit ErrorKind = "rate_limit"
	// KindAPI - любой другой бизнес-код биржи
	KindAPI ErrorKind = "api"
)

// BitgetError представляет классифицированную ошибку Bitget API
//
// Kind определяется из пары (code, msg) ответа либо из транспортной
// ошибки и управляет retry-политикой клиента.
type BitgetError struct {
	Kind     ErrorKind
	Code     string
	Message  string
	Original error
}

func (e *BitgetError) Error() string {
	if e.Code != "" {
		return "bitget: [" + e.Code + "] " + e.Message
	}
	return "bitget: " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *BitgetError) Unwrap() error {
	return e.Original
}

// Retryable реализует retry.RetryableError: auth-ошибки не retry'ятся
func (e *BitgetError) Retryable() bool {
	return e.Kind != KindAuth
}

// Коды Bitget, указывающие на проблему с credentials
var authCodes = map[string]struct{}{
	"40001": {}, // заголовок ACCESS_KEY отсутствует
	"40002": {}, // заголовок ACCESS_SIGN отсутствует
	"40003": {}, // заголовок ACCESS_TIMESTAMP отсутствует
	"40005": {}, // недопустимый ACCESS_TIMESTAMP
	"40006": {}, // недопустимый ACCESS_KEY
	"40007": {}, // недопустимый Content-Type
	"40008": {}, // истёкший timestamp запроса
	"40009": {}, // ошибка подписи
	"40011": {}, // заголовок ACCESS_PASSPHRASE отсутствует
	"40012": {}, // неверная passphrase
	"40037": {}, // apikey не существует
}

// Коды Bitget, указывающие на троттлинг
var rateLimitCodes = map[string]struct{}{
	"429":   {},
	"40429": {},
	"45110": {}, // слишком частые запросы к ордерам
}

// classifyResponse сопоставляет паре (code, msg) вид ошибки
//
// Сообщение проверяется первым: некоторые коды Bitget переиспользуются,
// и текст "rate limited" надёжнее кода.
func classifyResponse(code, msg string) *BitgetError {
	kind := KindAPI

	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, "rate limit", "too many request", "too frequent", "request too often"):
		kind = KindRateLimit
	case containsAny(lower, "signature", "apikey", "api key", "passphrase", "access_key", "permission denied"):
		kind = KindAuth
	default:
		if _, ok := rateLimitCodes[code]; ok {
			kind = KindRateLimit
		} else if _, ok := authCodes[code]; ok {
			kind = KindAuth
		}
	}

	return &BitgetError{Kind: kind, Code: code, Message: msg}
}

// classifyTransport оборачивает транспортную ошибку в BitgetError
func classifyTransport(err error) *BitgetError {
	kind := KindNetwork

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}

	return &BitgetError{Kind: kind, Message: err.Error(), Original: err}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// IsAuthError возвращает true для ошибок аутентификации
func IsAuthError(err error) bool {
	var be *BitgetError
	return errors.As(err, &be) && be.Kind == KindAuth
}

// IsRateLimitError возвращает true для ошибок троттлинга
func IsRateLimitError(err error) bool {
	var be *BitgetError
	return errors.As(err, &be) && be.Kind == KindRateLimit
}

package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// signPayload строит строку для подписи запроса к Bitget
//
// Формат: timestamp + method + requestPath[?query] + body.
// Для GET без параметров query пустой; body пустой для всех GET.
func signPayload(timestamp, method, requestPath, query, body string) string {
	path := requestPath
	if query != "" {
		path += "?" + query
	}
	return timestamp + method + path + body
}

// sign вычисляет подпись ACCESS-SIGN: base64(HMAC-SHA256(secret, payload))
//
// Timestamp в payload - миллисекунды Unix; генерируется в момент отправки
// и пересчитывается на каждой retry-попытке, иначе биржа отклонит
// устаревший timestamp.
func sign(secret, timestamp, method, requestPath, query, body string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(signPayload(timestamp, method, requestPath, query, body)))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

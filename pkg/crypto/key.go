package crypto

import (
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

// Ошибки деривации ключа
var (
	ErrEmptyPassphrase = errors.New("passphrase must not be empty")
	ErrEmptySalt       = errors.New("salt must not be empty")
)

// Параметры PBKDF2 для деривации ключа шифрования
//
// Ключ деривируется один раз при старте процесса, поэтому количество
// итераций выбрано консервативно высоким.
const (
	keyIterations = 100_000
	keyLength     = 32 // AES-256
)

// DeriveKey выводит 32-байтовый ключ AES-256 из passphrase и соли
//
// Используется PBKDF2-HMAC-SHA256. Passphrase задаётся оператором через
// окружение, соль фиксируется в конфигурации развёртывания: одинаковая
// пара (passphrase, salt) всегда даёт один и тот же ключ, что необходимо
// для расшифровки ранее сохранённых credentials.
func DeriveKey(passphrase, salt string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if salt == "" {
		return nil, ErrEmptySalt
	}
	return pbkdf2.Key([]byte(passphrase), []byte(salt), keyIterations, keyLength, sha256.New), nil
}

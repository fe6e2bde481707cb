package models

import "time"

// APIKey представляет биржевые credentials пользователя
//
// Secret и Passphrase хранятся в БД зашифрованными (AES-256-GCM, base64).
// Расшифровка выполняется только в момент создания биржевого клиента.
type APIKey struct {
	UserID              int64     `json:"user_id" db:"user_id"`
	Key                 string    `json:"api_key" db:"api_key"`
	SecretEncrypted     string    `json:"-" db:"secret_encrypted"`
	PassphraseEncrypted string    `json:"-" db:"passphrase_encrypted"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// Complete возвращает true если все три компонента credentials заданы
func (k *APIKey) Complete() bool {
	return k != nil && k.Key != "" && k.SecretEncrypted != "" && k.PassphraseEncrypted != ""
}

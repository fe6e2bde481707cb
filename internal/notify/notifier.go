package notify

import (
	"log"

	jsoniter "github.com/json-iterator/go"

	"tradebot/internal/bot"
	"tradebot/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LogNotifier пишет уведомления в лог сервиса. Fire-and-forget:
// доставка никогда не возвращает ошибку и не блокирует торговлю.
type LogNotifier struct{}

// NewLogNotifier создает лог-нотификатор
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Notify реализует bot.Notifier
func (n *LogNotifier) Notify(notification *models.Notification) {
	if notification == nil {
		return
	}

	meta := ""
	if len(notification.Meta) > 0 {
		if raw, err := json.Marshal(notification.Meta); err == nil {
			meta = " " + string(raw)
		}
	}

	log.Printf("[%s] notify: user %d %s: %s%s",
		severityTag(notification.Severity),
		notification.UserID,
		notification.Event,
		notification.Message,
		meta,
	)
}

func severityTag(severity string) string {
	switch severity {
	case models.SeverityWarn:
		return "WARN"
	case models.SeverityError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Fanout рассылает уведомление нескольким нотификаторам
type Fanout []bot.Notifier

// Notify реализует bot.Notifier
func (f Fanout) Notify(n *models.Notification) {
	for _, target := range f {
		target.Notify(n)
	}
}

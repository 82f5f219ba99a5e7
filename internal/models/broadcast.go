package models

// BroadcastMessage задание на доставку текста конкретному подписчику.
// Публикуется в очередь и обрабатывается отправителем асинхронно.
type BroadcastMessage struct {
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
}

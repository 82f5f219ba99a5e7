// Package refcode генерирует реферальные коды пользователей.
// Код содержит идентификатор пользователя и случайный суффикс,
// поэтому уникален на момент выдачи.
package refcode

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Prefix префикс всех реферальных кодов.
const Prefix = "REF"

// Generate возвращает новый код вида REF<user_id><8 hex-символов>.
func Generate(userID int64) string {
	suffix := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("%s%d%s", Prefix, userID, suffix)
}

package barcode

import (
	"strings"

	"github.com/google/uuid"
)

// IdentifierLength is the fixed length of issued barcode identifiers.
const IdentifierLength = 10

// Generate выдает короткий сканируемый идентификатор: первые 10 символов
// hex-представления случайного UUID в верхнем регистре. Пространство 16^10,
// коллизии разруливаются повторной генерацией на уровне сервиса.
func Generate() string {
	id := uuid.New()
	hex := strings.ToUpper(id.String())
	hex = strings.ReplaceAll(hex, "-", "")
	return hex[:IdentifierLength]
}

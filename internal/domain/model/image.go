// Пакет model — доменные модели imghost.
// ImageRecord — единая структура метаданных изображения, используется
// как in-memory представление и как формат sidecar-файла <id>.json.
package model

import (
	"regexp"
	"time"
)

// RecordStatus — статус записи изображения.
type RecordStatus string

const (
	// StatusPending — идентификатор заявлен, blob ещё не записан.
	// Записи в этом статусе невидимы для API и вычищаются sweeper'ом.
	StatusPending RecordStatus = "pending"
	// StatusCommitted — blob записан, запись доступна для операций.
	StatusCommitted RecordStatus = "committed"
)

// idPattern — допустимый формат пользовательского идентификатора.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidID проверяет пользовательский идентификатор на допустимый формат.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// ImageRecord — метаданные изображения. Соответствует содержимому <id>.json.
// Запись иммутабельна после коммита: единственная допустимая мутация —
// полное удаление (blob + sidecar).
type ImageRecord struct {
	// ID — уникальный идентификатор: задан клиентом ([A-Za-z0-9_-]+)
	// или сгенерирован (UUID v4)
	ID string `json:"id"`

	// Filename — имя blob-файла на диске: <id> + расширение в нижнем регистре
	Filename string `json:"filename"`

	// OriginalName — имя файла, присланное клиентом. Недоверенное,
	// используется только для отображения; разметка вырезается при загрузке,
	// при рендеринге дополнительно экранируется
	OriginalName string `json:"originalName"`

	// UploadedAt — дата и время загрузки (UTC)
	UploadedAt time.Time `json:"uploadedAt"`

	// Status — pending до записи blob, committed после
	Status RecordStatus `json:"status"`
}

// IsCommitted проверяет, что запись полностью создана и видима для API.
func (r *ImageRecord) IsCommitted() bool {
	return r.Status == StatusCommitted
}

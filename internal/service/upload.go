// Пакет service — бизнес-логика imghost.
// upload.go — сервис загрузки изображений с атомарной заявкой идентификатора.
package service

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	apierrors "github.com/bigkaa/goimghost/internal/api/errors"
	"github.com/bigkaa/goimghost/internal/api/middleware"
	"github.com/bigkaa/goimghost/internal/domain/model"
	"github.com/bigkaa/goimghost/internal/storage/blobstore"
	"github.com/bigkaa/goimghost/internal/storage/index"
	"github.com/bigkaa/goimghost/internal/storage/meta"
)

// sniffLen — размер префикса, по которому определяется тип содержимого
// (столько читает http.DetectContentType).
const sniffLen = 512

// allowedTypes — допустимые MIME-типы и каноническое расширение для каждого.
// Расширение используется, когда оригинальное имя файла не даёт
// пригодного расширения.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// allowedExts — расширения, сохраняемые из оригинального имени файла.
// Всё остальное заменяется каноническим расширением определённого типа:
// blob никогда не получает имя, совпадающее с sidecar (<id>.json).
var allowedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// OpError — ошибка операции с HTTP-кодом.
type OpError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// internalError — конструктор OpError для внутренних ошибок.
func internalError(message string) *OpError {
	return &OpError{
		StatusCode: http.StatusInternalServerError,
		Code:       apierrors.CodeInternalError,
		Message:    message,
	}
}

// UploadParams — параметры загрузки изображения.
type UploadParams struct {
	// Reader — поток данных файла
	Reader io.Reader
	// OriginalName — имя файла, присланное клиентом (недоверенное)
	OriginalName string
	// CustomID — идентификатор, выбранный клиентом (опционально)
	CustomID string
}

// UploadResult — результат загрузки изображения.
type UploadResult struct {
	Record *model.ImageRecord
}

// UploadService — сервис загрузки изображений.
type UploadService struct {
	store     *blobstore.BlobStore
	idx       *index.Index
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
}

// NewUploadService создаёт сервис загрузки изображений.
func NewUploadService(store *blobstore.BlobStore, idx *index.Index, logger *slog.Logger) *UploadService {
	return &UploadService{
		store:     store,
		idx:       idx,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With(slog.String("component", "upload_service")),
	}
}

// Upload загружает изображение в хранилище.
//
// Поток:
//  1. Валидация пользовательского идентификатора
//  2. Определение типа содержимого по первым 512 байтам (до записи на диск)
//  3. Атомарная заявка идентификатора: O_EXCL-создание <id>.json (pending)
//  4. Streaming-запись blob'а: temp → fsync → atomic rename
//  5. Коммит sidecar'а (status committed) + добавление в индекс
//
// При ошибке после заявки — откат: удаление blob'а и sidecar'а.
func (s *UploadService) Upload(params UploadParams) (*UploadResult, *OpError) {
	// 1. Идентификатор: пользовательский или сгенерированный
	id := params.CustomID
	if id != "" {
		if !model.ValidID(id) {
			middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
			return nil, &OpError{
				StatusCode: http.StatusBadRequest,
				Code:       apierrors.CodeValidationError,
				Message:    fmt.Sprintf("Недопустимый идентификатор %q: разрешены только [A-Za-z0-9_-]", id),
			}
		}
	} else {
		id = uuid.New().String()
	}

	// 2. Определяем тип содержимого по префиксу потока.
	// Отклоняем неподдерживаемые типы до того, как что-либо попадёт на диск.
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(params.Reader, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, internalError("Ошибка чтения загружаемых данных")
	}
	contentType := http.DetectContentType(buf[:n])
	canonicalExt, ok := allowedTypes[contentType]
	if !ok {
		middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
		return nil, &OpError{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeValidationError,
			Message:    fmt.Sprintf("Неподдерживаемый тип %q: допустимы image/jpeg, image/png, image/gif, image/webp", contentType),
		}
	}

	// 3. Имя blob'а: <id> + расширение оригинала в нижнем регистре.
	// Непригодное расширение заменяется каноническим для типа.
	ext := strings.ToLower(filepath.Ext(params.OriginalName))
	if !allowedExts[ext] {
		ext = canonicalExt
	}
	filename := id + ext

	// Имя для отображения: вырезаем разметку из недоверенного значения
	originalName := s.sanitizer.Sanitize(params.OriginalName)

	rec := &model.ImageRecord{
		ID:           id,
		Filename:     filename,
		OriginalName: originalName,
		UploadedAt:   time.Now().UTC(),
		Status:       model.StatusPending,
	}

	// 4. Заявляем идентификатор: O_EXCL закрывает гонку конкурентных
	// upload'ов с одинаковым id
	if err := meta.Claim(s.store.DataDir(), id, rec); err != nil {
		if err == meta.ErrIDTaken {
			middleware.OperationsTotal.WithLabelValues("upload", "conflict").Inc()
			return nil, &OpError{
				StatusCode: http.StatusConflict,
				Code:       apierrors.CodeConflict,
				Message:    fmt.Sprintf("Идентификатор %s уже существует", id),
			}
		}
		s.logger.Error("Ошибка заявки идентификатора",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, internalError("Внутренняя ошибка при заявке идентификатора")
	}

	rollback := func() {
		_ = s.store.Delete(filename)
		_ = meta.Delete(s.store.DataDir(), id)
	}

	// 5. Записываем blob: прочитанный префикс + остаток потока
	size, err := s.store.Save(io.MultiReader(bytes.NewReader(buf[:n]), params.Reader), filename)
	if err != nil {
		rollback()
		s.logger.Error("Ошибка сохранения blob",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, internalError("Ошибка сохранения файла на диск")
	}

	// 6. Коммитим sidecar
	rec.Status = model.StatusCommitted
	if err := meta.Write(s.store.DataDir(), rec); err != nil {
		rollback()
		s.logger.Error("Ошибка коммита sidecar",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, internalError("Ошибка записи метаданных")
	}

	// 7. Добавляем в индекс
	s.idx.Add(rec)

	// 8. Метрики
	middleware.OperationsTotal.WithLabelValues("upload", "success").Inc()
	middleware.ImagesTotal.Set(float64(s.idx.Count()))

	s.logger.Info("Изображение загружено",
		slog.String("id", id),
		slog.String("filename", filename),
		slog.String("content_type", contentType),
		slog.Int64("size", size),
	)

	return &UploadResult{Record: rec}, nil
}

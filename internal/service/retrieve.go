// retrieve.go — сервис выдачи изображений.
package service

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	apierrors "github.com/bigkaa/goimghost/internal/api/errors"
	"github.com/bigkaa/goimghost/internal/api/middleware"
	"github.com/bigkaa/goimghost/internal/domain/model"
	"github.com/bigkaa/goimghost/internal/storage/blobstore"
	"github.com/bigkaa/goimghost/internal/storage/index"
)

// cacheControl — директива кэширования для выдачи blob'ов.
// Записи иммутабельны после коммита, поэтому кэшировать можно навсегда.
const cacheControl = "public, max-age=31536000, immutable"

// RetrieveService — сервис выдачи изображений.
type RetrieveService struct {
	store  *blobstore.BlobStore
	idx    *index.Index
	logger *slog.Logger
}

// NewRetrieveService создаёт сервис выдачи изображений.
func NewRetrieveService(store *blobstore.BlobStore, idx *index.Index, logger *slog.Logger) *RetrieveService {
	return &RetrieveService{
		store:  store,
		idx:    idx,
		logger: logger.With(slog.String("component", "retrieve_service")),
	}
}

// Get возвращает запись по идентификатору.
// NOT_FOUND, если записи нет в индексе.
func (s *RetrieveService) Get(id string) (*model.ImageRecord, *OpError) {
	rec := s.idx.Get(id)
	if rec == nil {
		return nil, &OpError{
			StatusCode: http.StatusNotFound,
			Code:       apierrors.CodeNotFound,
			Message:    fmt.Sprintf("Изображение %s не найдено", id),
		}
	}
	return rec, nil
}

// Serve отдаёт blob клиенту через http.ServeContent.
// Range requests и If-None-Match обрабатываются автоматически.
//
// Если метаданные есть, а blob на диске отсутствует — возвращается
// FILE_MISSING (404 с отличимым кодом): так диагностируются записи,
// частично удалённые извне или оборванным delete.
func (s *RetrieveService) Serve(w http.ResponseWriter, r *http.Request, id string) *OpError {
	rec, opErr := s.Get(id)
	if opErr != nil {
		return opErr
	}

	file, err := s.store.Open(rec.Filename)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("Blob отсутствует на диске",
				slog.String("id", id),
				slog.String("filename", rec.Filename),
			)
			return &OpError{
				StatusCode: http.StatusNotFound,
				Code:       apierrors.CodeFileMissing,
				Message:    fmt.Sprintf("Файл изображения %s отсутствует на диске", id),
			}
		}
		s.logger.Error("Ошибка открытия blob",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return internalError("Ошибка чтения файла")
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		s.logger.Error("Ошибка stat blob",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return internalError("Ошибка чтения файла")
	}

	w.Header().Set("Content-Type", ContentTypeByExtension(rec.Filename))
	w.Header().Set("Cache-Control", cacheControl)

	http.ServeContent(w, r, rec.Filename, stat.ModTime(), file)

	middleware.OperationsTotal.WithLabelValues("fetch", "success").Inc()

	s.logger.Debug("Изображение отдано",
		slog.String("id", id),
		slog.Int64("size", stat.Size()),
	)

	return nil
}

// ContentTypeByExtension возвращает MIME-тип по расширению имени файла.
// Неопределимое расширение → application/octet-stream.
func ContentTypeByExtension(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

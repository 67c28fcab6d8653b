// delete.go — сервис удаления изображений.
package service

import (
	"fmt"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/goimghost/internal/api/errors"
	"github.com/bigkaa/goimghost/internal/api/middleware"
	"github.com/bigkaa/goimghost/internal/storage/blobstore"
	"github.com/bigkaa/goimghost/internal/storage/index"
	"github.com/bigkaa/goimghost/internal/storage/meta"
)

// DeleteService — сервис удаления изображений.
type DeleteService struct {
	store  *blobstore.BlobStore
	idx    *index.Index
	logger *slog.Logger
}

// NewDeleteService создаёт сервис удаления изображений.
func NewDeleteService(store *blobstore.BlobStore, idx *index.Index, logger *slog.Logger) *DeleteService {
	return &DeleteService{
		store:  store,
		idx:    idx,
		logger: logger.With(slog.String("component", "delete_service")),
	}
}

// Delete удаляет запись полностью: blob, sidecar, индекс.
// Отсутствие blob'а или sidecar'а на диске не является ошибкой —
// удаление идемпотентно и не зависит от порядка предыдущих сбоев.
// NOT_FOUND возвращается только если записи нет в индексе.
func (s *DeleteService) Delete(id string) *OpError {
	rec := s.idx.Get(id)
	if rec == nil {
		return &OpError{
			StatusCode: http.StatusNotFound,
			Code:       apierrors.CodeNotFound,
			Message:    fmt.Sprintf("Изображение %s не найдено", id),
		}
	}

	if err := s.store.Delete(rec.Filename); err != nil {
		middleware.OperationsTotal.WithLabelValues("delete", "error").Inc()
		s.logger.Error("Ошибка удаления blob",
			slog.String("id", id),
			slog.String("filename", rec.Filename),
			slog.String("error", err.Error()),
		)
		return internalError("Ошибка удаления файла")
	}

	if err := meta.Delete(s.store.DataDir(), id); err != nil {
		middleware.OperationsTotal.WithLabelValues("delete", "error").Inc()
		s.logger.Error("Ошибка удаления sidecar",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return internalError("Ошибка удаления метаданных")
	}

	s.idx.Remove(id)

	middleware.OperationsTotal.WithLabelValues("delete", "success").Inc()
	middleware.ImagesTotal.Set(float64(s.idx.Count()))

	s.logger.Info("Изображение удалено",
		slog.String("id", id),
		slog.String("filename", rec.Filename),
	)

	return nil
}

// images.go — HTTP handlers операций с изображениями: upload, fetch, delete.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goimghost/internal/api/errors"
	"github.com/bigkaa/goimghost/internal/config"
	"github.com/bigkaa/goimghost/internal/service"
)

// multipartMemory — лимит буферизации multipart-формы в памяти;
// остальное net/http сбрасывает во временные файлы.
const multipartMemory = 10 << 20

// uploadResponse — тело ответа на успешный upload.
type uploadResponse struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	ViewURL string `json:"viewUrl"`
}

// okResponse — тело ответа на успешный delete.
type okResponse struct {
	OK bool `json:"ok"`
}

// ImagesHandler — обработчик endpoints изображений.
type ImagesHandler struct {
	cfg         *config.Config
	uploadSvc   *service.UploadService
	retrieveSvc *service.RetrieveService
	deleteSvc   *service.DeleteService
}

// NewImagesHandler создаёт обработчик endpoints изображений.
func NewImagesHandler(
	cfg *config.Config,
	uploadSvc *service.UploadService,
	retrieveSvc *service.RetrieveService,
	deleteSvc *service.DeleteService,
) *ImagesHandler {
	return &ImagesHandler{
		cfg:         cfg,
		uploadSvc:   uploadSvc,
		retrieveSvc: retrieveSvc,
		deleteSvc:   deleteSvc,
	}
}

// Upload обрабатывает POST /upload.
// Multipart form: file (обязательно), id (опционально, также в query).
// Тело запроса ограничено IMGHOST_MAX_UPLOAD_SIZE.
func (h *ImagesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apierrors.FileTooLarge(w, fmt.Sprintf(
				"Тело запроса превышает лимит %d байт", h.cfg.MaxUploadSize))
			return
		}
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	// Пользовательский идентификатор: поле формы или query-параметр
	// (FormValue покрывает оба источника)
	customID := r.FormValue("id")

	result, opErr := h.uploadSvc.Upload(service.UploadParams{
		Reader:       file,
		OriginalName: header.Filename,
		CustomID:     customID,
	})
	if opErr != nil {
		apierrors.WriteError(w, opErr.StatusCode, opErr.Code, opErr.Message)
		return
	}

	id := result.Record.ID
	writeJSON(w, http.StatusOK, uploadResponse{
		ID:      id,
		URL:     h.cfg.BaseURL + "/i/" + id,
		ViewURL: h.cfg.BaseURL + "/view/" + id,
	})
}

// Fetch обрабатывает GET /i/{id} — выдача сырых байтов изображения.
func (h *ImagesHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if opErr := h.retrieveSvc.Serve(w, r, id); opErr != nil {
		apierrors.WriteError(w, opErr.StatusCode, opErr.Code, opErr.Message)
	}
}

// Delete обрабатывает DELETE /delete/{id}. Требует Basic auth (middleware).
func (h *ImagesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if opErr := h.deleteSvc.Delete(id); opErr != nil {
		apierrors.WriteError(w, opErr.StatusCode, opErr.Code, opErr.Message)
		return
	}

	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// writeJSON — вспомогательная функция для записи JSON-ответа.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

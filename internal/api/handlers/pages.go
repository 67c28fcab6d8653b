// pages.go — HTTP handlers HTML-страниц: embed-страница и галерея.
// Все недоверенные значения проходят через html/template и экранируются.
package handlers

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goimghost/internal/api/errors"
	"github.com/bigkaa/goimghost/internal/config"
	"github.com/bigkaa/goimghost/internal/service"
	"github.com/bigkaa/goimghost/internal/storage/index"
	"github.com/bigkaa/goimghost/internal/web"
)

// viewData — данные embed-страницы.
type viewData struct {
	Title    string
	ImageURL string
	PageURL  string
}

// galleryImage — данные одной карточки галереи.
type galleryImage struct {
	ID           string
	OriginalName string
	UploadedAt   string
	ImageURL     string
	ViewURL      string
}

// galleryData — данные страницы галереи.
type galleryData struct {
	Count  int
	Images []galleryImage
}

// PagesHandler — обработчик HTML-страниц.
type PagesHandler struct {
	cfg         *config.Config
	retrieveSvc *service.RetrieveService
	idx         *index.Index
	logger      *slog.Logger
}

// NewPagesHandler создаёт обработчик HTML-страниц.
func NewPagesHandler(cfg *config.Config, retrieveSvc *service.RetrieveService, idx *index.Index, logger *slog.Logger) *PagesHandler {
	return &PagesHandler{
		cfg:         cfg,
		retrieveSvc: retrieveSvc,
		idx:         idx,
		logger:      logger.With(slog.String("component", "pages")),
	}
}

// View обрабатывает GET /view/{id} — embed-страница одного изображения
// с og/twitter-метаданными для социальных превью.
func (h *PagesHandler) View(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, opErr := h.retrieveSvc.Get(id)
	if opErr != nil {
		apierrors.WriteError(w, opErr.StatusCode, opErr.Code, opErr.Message)
		return
	}

	title := rec.OriginalName
	if title == "" {
		title = rec.ID
	}

	h.render(w, "view.html.tmpl", viewData{
		Title:    title,
		ImageURL: h.cfg.BaseURL + "/i/" + rec.ID,
		PageURL:  h.cfg.BaseURL + "/view/" + rec.ID,
	})
}

// Gallery обрабатывает GET /gallery — страница со всеми изображениями,
// отсортированными по дате загрузки (новые первые).
func (h *PagesHandler) Gallery(w http.ResponseWriter, _ *http.Request) {
	records := h.idx.List()

	images := make([]galleryImage, 0, len(records))
	for _, rec := range records {
		name := rec.OriginalName
		if name == "" {
			name = rec.ID
		}
		images = append(images, galleryImage{
			ID:           rec.ID,
			OriginalName: name,
			UploadedAt:   rec.UploadedAt.Format("02.01.2006 15:04 UTC"),
			ImageURL:     h.cfg.BaseURL + "/i/" + rec.ID,
			ViewURL:      h.cfg.BaseURL + "/view/" + rec.ID,
		})
	}

	h.render(w, "gallery.html.tmpl", galleryData{
		Count:  len(images),
		Images: images,
	})
}

// render выполняет шаблон в буфер и отдаёт результат.
// Буферизация гарантирует, что при ошибке шаблона клиент получит
// корректный 500, а не обрезанную страницу.
func (h *PagesHandler) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := web.Templates.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("Ошибка рендеринга шаблона",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Ошибка рендеринга страницы")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

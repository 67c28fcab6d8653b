package service

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	apierrors "github.com/bigkaa/goimghost/internal/api/errors"
	"github.com/bigkaa/goimghost/internal/domain/model"
	"github.com/bigkaa/goimghost/internal/storage/blobstore"
	"github.com/bigkaa/goimghost/internal/storage/index"
)

// uploadTestImage загружает тестовое изображение и возвращает запись.
func uploadTestImage(t *testing.T, store *blobstore.BlobStore, idx *index.Index, id string, data []byte, name string) *model.ImageRecord {
	t.Helper()
	svc := NewUploadService(store, idx, testLogger())
	result, opErr := svc.Upload(UploadParams{
		Reader:       bytes.NewReader(data),
		OriginalName: name,
		CustomID:     id,
	})
	if opErr != nil {
		t.Fatalf("ошибка загрузки тестового изображения: %v", opErr)
	}
	return result.Record
}

// TestServe проверяет выдачу blob'а: байты, Content-Type и кэш-заголовок.
func TestServe(t *testing.T) {
	store, idx := newTestStorage(t)
	uploadTestImage(t, store, idx, "pic", pngBytes, "pic.png")

	svc := NewRetrieveService(store, idx, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/i/pic", nil)
	rec := httptest.NewRecorder()
	if opErr := svc.Serve(rec, req, "pic"); opErr != nil {
		t.Fatalf("ошибка выдачи: %v", opErr)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type: ожидалось image/png, получено %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != cacheControl {
		t.Errorf("Cache-Control: ожидалось %q, получено %q", cacheControl, cc)
	}

	body, _ := io.ReadAll(rec.Body)
	if !bytes.Equal(body, pngBytes) {
		t.Error("отданные байты не совпадают с загруженными")
	}
}

// TestServe_NotFound проверяет выдачу несуществующего изображения.
func TestServe_NotFound(t *testing.T) {
	store, idx := newTestStorage(t)
	svc := NewRetrieveService(store, idx, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/i/nope", nil)
	rec := httptest.NewRecorder()

	opErr := svc.Serve(rec, req, "nope")
	if opErr == nil {
		t.Fatal("ожидалась ошибка NOT_FOUND")
	}
	if opErr.StatusCode != http.StatusNotFound {
		t.Errorf("ожидался статус 404, получен %d", opErr.StatusCode)
	}
	if opErr.Code != apierrors.CodeNotFound {
		t.Errorf("ожидался код NOT_FOUND, получен %q", opErr.Code)
	}
}

// TestServe_FileMissing проверяет различимый код FILE_MISSING, когда
// метаданные есть, а blob удалён извне.
func TestServe_FileMissing(t *testing.T) {
	store, idx := newTestStorage(t)
	rec := uploadTestImage(t, store, idx, "ghost", pngBytes, "ghost.png")

	// Удаляем blob напрямую, минуя API
	if err := store.Delete(rec.Filename); err != nil {
		t.Fatalf("ошибка подготовки: %v", err)
	}

	svc := NewRetrieveService(store, idx, testLogger())
	req := httptest.NewRequest(http.MethodGet, "/i/ghost", nil)
	w := httptest.NewRecorder()

	opErr := svc.Serve(w, req, "ghost")
	if opErr == nil {
		t.Fatal("ожидалась ошибка FILE_MISSING")
	}
	if opErr.StatusCode != http.StatusNotFound {
		t.Errorf("ожидался статус 404, получен %d", opErr.StatusCode)
	}
	if opErr.Code != apierrors.CodeFileMissing {
		t.Errorf("ожидался код FILE_MISSING, получен %q", opErr.Code)
	}
}

// TestServe_RangeRequest проверяет поддержку Range-запросов через
// http.ServeContent.
func TestServe_RangeRequest(t *testing.T) {
	store, idx := newTestStorage(t)
	uploadTestImage(t, store, idx, "ranged", pngBytes, "ranged.png")

	svc := NewRetrieveService(store, idx, testLogger())
	req := httptest.NewRequest(http.MethodGet, "/i/ranged", nil)
	req.Header.Set("Range", "bytes=0-7")
	rec := httptest.NewRecorder()

	if opErr := svc.Serve(rec, req, "ranged"); opErr != nil {
		t.Fatalf("ошибка выдачи: %v", opErr)
	}
	if rec.Code != http.StatusPartialContent {
		t.Errorf("ожидался статус 206, получен %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !bytes.Equal(body, pngBytes[:8]) {
		t.Error("частичное содержимое не совпадает с запрошенным диапазоном")
	}
}

// TestContentTypeByExtension проверяет определение MIME-типа по расширению.
func TestContentTypeByExtension(t *testing.T) {
	cases := map[string]string{
		"a.jpg":  "image/jpeg",
		"a.png":  "image/png",
		"a.gif":  "image/gif",
		"a.webp": "image/webp",
		"a.bin":  "application/octet-stream",
		"a":      "application/octet-stream",
	}
	for filename, want := range cases {
		if got := ContentTypeByExtension(filename); got != want {
			t.Errorf("%s: ожидалось %q, получено %q", filename, want, got)
		}
	}
}

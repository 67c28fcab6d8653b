package meta

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bigkaa/goimghost/internal/domain/model"
)

// testRecord создаёт тестовую запись изображения.
func testRecord(id string) *model.ImageRecord {
	return &model.ImageRecord{
		ID:           id,
		Filename:     id + ".png",
		OriginalName: "фото.png",
		UploadedAt:   time.Now().UTC().Truncate(time.Second),
		Status:       model.StatusCommitted,
	}
}

// TestWriteAndRead проверяет запись и чтение sidecar-файла.
func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	rec := testRecord("abc123")

	if err := Write(dir, rec); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	path := SidecarPath(dir, rec.ID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("sidecar-файл не создан")
	}

	readRec, err := Read(path)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}

	if readRec.ID != rec.ID {
		t.Errorf("ID: ожидалось %q, получено %q", rec.ID, readRec.ID)
	}
	if readRec.Filename != rec.Filename {
		t.Errorf("Filename: ожидалось %q, получено %q", rec.Filename, readRec.Filename)
	}
	if readRec.OriginalName != rec.OriginalName {
		t.Errorf("OriginalName: ожидалось %q, получено %q", rec.OriginalName, readRec.OriginalName)
	}
	if !readRec.UploadedAt.Equal(rec.UploadedAt) {
		t.Errorf("UploadedAt: ожидалось %v, получено %v", rec.UploadedAt, readRec.UploadedAt)
	}
	if readRec.Status != rec.Status {
		t.Errorf("Status: ожидалось %q, получено %q", rec.Status, readRec.Status)
	}
}

// TestWrite_AtomicNoTmpFile проверяет, что temp файл не остаётся после записи.
func TestWrite_AtomicNoTmpFile(t *testing.T) {
	dir := t.TempDir()

	if err := Write(dir, testRecord("abc123")); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	tmpPath := SidecarPath(dir, "abc123") + ".tmp"
	if _, err := os.Stat(tmpPath); !os.IsNotExist(err) {
		t.Error("временный файл не должен существовать после атомарной записи")
	}
}

// TestClaim проверяет заявку свободного идентификатора.
func TestClaim(t *testing.T) {
	dir := t.TempDir()
	rec := testRecord("my-id")
	rec.Status = model.StatusPending

	if err := Claim(dir, rec.ID, rec); err != nil {
		t.Fatalf("ошибка заявки: %v", err)
	}

	readRec, err := Read(SidecarPath(dir, rec.ID))
	if err != nil {
		t.Fatalf("ошибка чтения заявленного sidecar: %v", err)
	}
	if readRec.Status != model.StatusPending {
		t.Errorf("Status: ожидалось %q, получено %q", model.StatusPending, readRec.Status)
	}
}

// TestClaim_IDTaken проверяет, что повторная заявка того же идентификатора
// возвращает ErrIDTaken и не затирает существующую запись.
func TestClaim_IDTaken(t *testing.T) {
	dir := t.TempDir()
	first := testRecord("same-id")
	first.OriginalName = "первый.png"

	if err := Claim(dir, first.ID, first); err != nil {
		t.Fatalf("ошибка первой заявки: %v", err)
	}

	second := testRecord("same-id")
	second.OriginalName = "второй.png"

	err := Claim(dir, second.ID, second)
	if err != ErrIDTaken {
		t.Fatalf("ожидалась ошибка ErrIDTaken, получено: %v", err)
	}

	// Первая запись должна остаться нетронутой
	readRec, err := Read(SidecarPath(dir, "same-id"))
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if readRec.OriginalName != "первый.png" {
		t.Errorf("первая запись затёрта: получено %q", readRec.OriginalName)
	}
}

// TestDelete_Idempotent проверяет идемпотентность удаления sidecar-файла.
func TestDelete_Idempotent(t *testing.T) {
	dir := t.TempDir()
	rec := testRecord("abc123")

	if err := Write(dir, rec); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	if err := Delete(dir, rec.ID); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if Exists(dir, rec.ID) {
		t.Error("sidecar должен быть удалён")
	}

	// Повторное удаление не должно возвращать ошибку
	if err := Delete(dir, rec.ID); err != nil {
		t.Errorf("повторное удаление должно быть идемпотентным: %v", err)
	}
}

// TestRead_NotFound проверяет чтение несуществующего sidecar-файла.
func TestRead_NotFound(t *testing.T) {
	dir := t.TempDir()

	if _, err := Read(SidecarPath(dir, "nonexistent")); err == nil {
		t.Error("ожидалась ошибка для несуществующего файла")
	}
}

// TestRead_InvalidJSON проверяет чтение повреждённого sidecar-файла.
func TestRead_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := SidecarPath(dir, "broken")

	if err := os.WriteFile(path, []byte("не json"), 0o640); err != nil {
		t.Fatalf("ошибка подготовки файла: %v", err)
	}

	if _, err := Read(path); err == nil {
		t.Error("ожидалась ошибка десериализации")
	}
}

// TestScanDir проверяет сканирование директории с пропуском невалидных файлов.
func TestScanDir(t *testing.T) {
	dir := t.TempDir()

	for _, id := range []string{"one", "two", "three"} {
		if err := Write(dir, testRecord(id)); err != nil {
			t.Fatalf("ошибка записи %s: %v", id, err)
		}
	}

	// Невалидный sidecar и посторонний blob должны быть пропущены
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o640); err != nil {
		t.Fatalf("ошибка подготовки файла: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "one.png"), []byte("data"), 0o640); err != nil {
		t.Fatalf("ошибка подготовки файла: %v", err)
	}

	records, err := ScanDir(dir)
	if err != nil {
		t.Fatalf("ошибка сканирования: %v", err)
	}

	if len(records) != 3 {
		t.Errorf("ожидалось 3 записи, получено %d", len(records))
	}
}

// TestIDFromSidecar проверяет извлечение идентификатора из пути.
func TestIDFromSidecar(t *testing.T) {
	path := filepath.Join("data", "my-image.json")
	if id := IDFromSidecar(path); id != "my-image" {
		t.Errorf("ожидалось %q, получено %q", "my-image", id)
	}
}

// TestIsSidecar проверяет распознавание файлов метаданных.
func TestIsSidecar(t *testing.T) {
	if !IsSidecar("abc.json") {
		t.Error("abc.json должен распознаваться как sidecar")
	}
	if IsSidecar("abc.png") {
		t.Error("abc.png не должен распознаваться как sidecar")
	}
}

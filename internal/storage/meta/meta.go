// Пакет meta — чтение и запись sidecar-файлов метаданных (<id>.json).
// Каждое изображение в хранилище имеет сопутствующий <id>.json,
// который является единственным источником истины для метаданных.
// Все операции записи выполняются атомарно: temp → fsync → rename.
// Заявка идентификатора (Claim) выполняется через O_CREATE|O_EXCL,
// поэтому два конкурентных upload'а не могут занять один id.
package meta

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bigkaa/goimghost/internal/domain/model"
)

// SidecarSuffix — суффикс файла метаданных.
const SidecarSuffix = ".json"

// maxSidecarSize — максимальный допустимый размер <id>.json (4 КБ).
// Ограничение гарантирует атомарность записи.
const maxSidecarSize = 4096

// ErrIDTaken возвращается из Claim, если идентификатор уже занят.
var ErrIDTaken = errors.New("идентификатор уже занят")

// SidecarPath возвращает путь к <id>.json в указанной директории.
func SidecarPath(dataDir, id string) string {
	return filepath.Join(dataDir, id+SidecarSuffix)
}

// IsSidecar проверяет, является ли путь файлом метаданных.
func IsSidecar(path string) bool {
	return strings.HasSuffix(path, SidecarSuffix)
}

// IDFromSidecar возвращает идентификатор записи из пути <id>.json.
func IDFromSidecar(path string) string {
	return strings.TrimSuffix(filepath.Base(path), SidecarSuffix)
}

// Claim атомарно заявляет идентификатор: создаёт <id>.json через
// O_CREATE|O_EXCL и записывает pending-запись. Если файл уже существует —
// возвращает ErrIDTaken. Это закрывает гонку check-then-act при
// конкурентных upload'ах с одинаковым пользовательским id.
//
// Заявленный sidecar намеренно пишется без temp-файла: O_EXCL и есть
// точка атомарности, а содержимое будет перезаписано Write после
// записи blob'а.
func Claim(dataDir, id string, rec *model.ImageRecord) error {
	data, err := marshal(rec)
	if err != nil {
		return err
	}

	path := SidecarPath(dataDir, id)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		if os.IsExist(err) {
			return ErrIDTaken
		}
		return fmt.Errorf("ошибка заявки идентификатора %s: %w", id, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("ошибка записи pending-записи %s: %w", id, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("ошибка fsync %s: %w", id, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("ошибка закрытия файла %s: %w", id, err)
	}

	return nil
}

// Write атомарно записывает метаданные в <id>.json.
// Паттерн: JSON → temp файл → fsync → atomic rename.
// Используется для коммита pending-записи после записи blob'а.
func Write(dataDir string, rec *model.ImageRecord) error {
	data, err := marshal(rec)
	if err != nil {
		return err
	}

	path := SidecarPath(dataDir, rec.ID)
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// Read читает и десериализует метаданные из <id>.json.
// Возвращает ошибку, если файл не найден или содержит невалидный JSON.
func Read(path string) (*model.ImageRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения sidecar %s: %w", path, err)
	}

	var rec model.ImageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("ошибка десериализации sidecar %s: %w", path, err)
	}

	return &rec, nil
}

// Delete удаляет <id>.json. Возвращает nil если файл уже не существует —
// удаление идемпотентно.
func Delete(dataDir, id string) error {
	err := os.Remove(SidecarPath(dataDir, id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления sidecar %s: %w", id, err)
	}
	return nil
}

// Exists проверяет наличие sidecar-файла для идентификатора.
func Exists(dataDir, id string) bool {
	_, err := os.Stat(SidecarPath(dataDir, id))
	return err == nil
}

// ScanDir сканирует директорию и возвращает все записи метаданных,
// включая pending. Не рекурсивный. Невалидные sidecar'ы пропускаются.
// Используется при построении in-memory индекса и при sweep.
func ScanDir(dir string) ([]*model.ImageRecord, error) {
	pattern := filepath.Join(dir, "*"+SidecarSuffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования директории %s: %w", dir, err)
	}

	var result []*model.ImageRecord
	for _, path := range matches {
		rec, err := Read(path)
		if err != nil {
			// Пропускаем невалидные sidecar'ы — ими займётся reconcile/sweep
			continue
		}
		result = append(result, rec)
	}

	return result, nil
}

// marshal сериализует запись и проверяет ограничение размера.
func marshal(rec *model.ImageRecord) ([]byte, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}
	if len(data) > maxSidecarSize {
		return nil, fmt.Errorf("размер sidecar (%d байт) превышает максимум (%d байт)", len(data), maxSidecarSize)
	}
	return data, nil
}

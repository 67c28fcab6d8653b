// Пакет blobstore — операции с физическими файлами изображений на диске.
// Обеспечивает streaming-запись через temp-файл с fsync и атомарным
// rename, чтение и идемпотентное удаление.
package blobstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BlobStore — управление blob-файлами в директории данных.
type BlobStore struct {
	// dataDir — корневая директория хранения (IMGHOST_DATA_DIR)
	dataDir string
}

// New создаёт новый BlobStore. Создаёт директорию, если она не существует.
func New(dataDir string) (*BlobStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	return &BlobStore{dataDir: dataDir}, nil
}

// Save записывает данные из reader в файл filename.
// Паттерн: temp файл → запись → fsync → atomic rename.
// Rename гарантирует, что частично записанный blob никогда не виден
// под финальным именем. При ошибке temp-файл удаляется.
// Возвращает размер записанных данных.
func (bs *BlobStore) Save(reader io.Reader, filename string) (int64, error) {
	fullPath := filepath.Join(bs.dataDir, filename)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, reader)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return size, nil
}

// Open открывает blob для чтения. Вызывающий код обязан закрыть файл.
// Отсутствие файла возвращается как os.ErrNotExist (через os.Open),
// чтобы вызывающий код мог отличить "blob отсутствует" от прочих ошибок.
func (bs *BlobStore) Open(filename string) (*os.File, error) {
	return os.Open(filepath.Join(bs.dataDir, filename))
}

// Delete удаляет blob с диска. Возвращает nil если файл уже
// не существует — удаление идемпотентно.
func (bs *BlobStore) Delete(filename string) error {
	err := os.Remove(filepath.Join(bs.dataDir, filename))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", filename, err)
	}
	return nil
}

// Exists проверяет существование blob'а на диске.
func (bs *BlobStore) Exists(filename string) bool {
	_, err := os.Stat(filepath.Join(bs.dataDir, filename))
	return err == nil
}

// FullPath возвращает абсолютный путь к blob'у на диске.
func (bs *BlobStore) FullPath(filename string) string {
	return filepath.Join(bs.dataDir, filename)
}

// DataDir возвращает путь к директории данных.
func (bs *BlobStore) DataDir() string {
	return bs.dataDir
}

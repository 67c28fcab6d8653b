// Пакет index — потокобезопасный in-memory индекс записей изображений.
//
// Индекс строится при старте из sidecar-файлов <id>.json (BuildFromDir)
// и обновляется синхронно при операциях записи (Add, Remove).
// Обеспечивает выдачу галереи и поиск по идентификатору без обращения
// к диску на каждый запрос.
//
// Не персистентный: при рестарте и при reconcile пересобирается
// из sidecar-файлов.
package index

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/bigkaa/goimghost/internal/domain/model"
	"github.com/bigkaa/goimghost/internal/storage/meta"
)

// Index — потокобезопасный in-memory индекс метаданных.
// Использует sync.RWMutex для конкурентного чтения и
// эксклюзивной записи.
type Index struct {
	mu      sync.RWMutex
	records map[string]*model.ImageRecord // id → record
	ready   bool                          // индекс построен и готов
	logger  *slog.Logger
}

// New создаёт пустой индекс. Для заполнения вызовите BuildFromDir.
func New(logger *slog.Logger) *Index {
	return &Index{
		records: make(map[string]*model.ImageRecord),
		logger:  logger.With(slog.String("component", "index")),
	}
}

// BuildFromDir строит индекс из sidecar-файлов в указанной директории.
// Вызывается при старте сервера и при reconcile. Заменяет текущее
// содержимое индекса. После успешного построения индекс помечается
// как ready. Pending-записи в индекс не попадают: они невидимы для API.
func (idx *Index) BuildFromDir(dataDir string) error {
	records, err := meta.ScanDir(dataDir)
	if err != nil {
		return fmt.Errorf("ошибка сканирования директории %s: %w", dataDir, err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.records = make(map[string]*model.ImageRecord, len(records))
	for _, rec := range records {
		if !rec.IsCommitted() {
			continue
		}
		idx.records[rec.ID] = rec
	}

	idx.ready = true

	idx.logger.Info("Индекс записей построен",
		slog.Int("records", len(idx.records)),
		slog.String("data_dir", dataDir),
	)

	return nil
}

// IsReady возвращает true, если индекс построен и готов к использованию.
func (idx *Index) IsReady() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.ready
}

// Add добавляет закоммиченную запись в индекс.
// Если запись с таким ID уже существует, она будет перезаписана.
func (idx *Index) Add(rec *model.ImageRecord) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	// Копия — защита от data race при внешних изменениях
	copied := *rec
	idx.records[rec.ID] = &copied
}

// Remove удаляет запись из индекса по id.
// Возвращает true, если запись была найдена и удалена.
func (idx *Index) Remove(id string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.records[id]; !ok {
		return false
	}
	delete(idx.records, id)
	return true
}

// Get возвращает запись по id. Возвращает nil, если запись не найдена.
func (idx *Index) Get(id string) *model.ImageRecord {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rec, ok := idx.records[id]
	if !ok {
		return nil
	}

	copied := *rec
	return &copied
}

// List возвращает все записи, отсортированные по дате загрузки
// (новые первые). Используется галереей.
func (idx *Index) List() []*model.ImageRecord {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	result := make([]*model.ImageRecord, 0, len(idx.records))
	for _, rec := range idx.records {
		copied := *rec
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UploadedAt.After(result[j].UploadedAt)
	})

	return result
}

// Count возвращает общее количество записей в индексе.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

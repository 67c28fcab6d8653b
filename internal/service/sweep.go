// sweep.go — сервис фоновой очистки хранилища.
//
// Sweep устраняет последствия сбоев между неатомарными шагами
// upload/delete:
//   - pending-записи старше IMGHOST_PENDING_MAX_AGE (процесс упал между
//     заявкой идентификатора и коммитом) — удаляются вместе с blob'ом
//   - осиротевшие blob'ы без sidecar'а (сбой между шагами delete) — удаляются
//   - брошенные temp-файлы (*.tmp) старше IMGHOST_PENDING_MAX_AGE — удаляются
//
// Sidecar без blob'а намеренно НЕ удаляется: такая запись остаётся
// видимой и диагностируется через FILE_MISSING при выдаче.
//
// Запускается как горутина с периодическим тикером (IMGHOST_SWEEP_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goimghost/internal/domain/model"
	"github.com/bigkaa/goimghost/internal/storage/blobstore"
	"github.com/bigkaa/goimghost/internal/storage/index"
	"github.com/bigkaa/goimghost/internal/storage/meta"
)

// Prometheus метрики sweep
var (
	// sweepRunsTotal — количество запусков sweep.
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imghost_sweep_runs_total",
		Help: "Общее количество запусков sweep",
	})

	// sweepRemovedTotal — количество удалённых объектов по типу.
	sweepRemovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imghost_sweep_removed_total",
		Help: "Общее количество объектов, удалённых sweep",
	}, []string{"type"})
)

// SweepResult — результат одного запуска sweep.
type SweepResult struct {
	// StalePending — количество удалённых брошенных pending-записей
	StalePending int
	// OrphanBlobs — количество удалённых осиротевших blob'ов
	OrphanBlobs int
	// TempFiles — количество удалённых брошенных temp-файлов
	TempFiles int
	// Errors — количество ошибок при обработке
	Errors int
}

// SweepService — сервис фоновой очистки хранилища.
type SweepService struct {
	store         *blobstore.BlobStore
	idx           *index.Index
	interval      time.Duration
	pendingMaxAge time.Duration
	logger        *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweepService создаёт сервис sweep.
func NewSweepService(
	store *blobstore.BlobStore,
	idx *index.Index,
	interval time.Duration,
	pendingMaxAge time.Duration,
	logger *slog.Logger,
) *SweepService {
	return &SweepService{
		store:         store,
		idx:           idx,
		interval:      interval,
		pendingMaxAge: pendingMaxAge,
		logger:        logger.With(slog.String("component", "sweep")),
	}
}

// Start запускает фоновую горутину sweep с периодическим тикером.
// Первый проход выполняется сразу: восстанавливаем после возможного
// падения предыдущего процесса.
func (sw *SweepService) Start(ctx context.Context) {
	swCtx, cancel := context.WithCancel(ctx)
	sw.cancel = cancel
	sw.done = make(chan struct{})

	go sw.run(swCtx)

	sw.logger.Info("Sweep запущен",
		slog.String("interval", sw.interval.String()),
		slog.String("pending_max_age", sw.pendingMaxAge.String()),
	)
}

// Stop останавливает фоновый процесс и ждёт завершения горутины.
func (sw *SweepService) Stop() {
	if sw.cancel != nil {
		sw.cancel()
	}
	if sw.done != nil {
		<-sw.done
	}
	sw.logger.Info("Sweep остановлен")
}

// run — основной цикл фоновой горутины.
func (sw *SweepService) run(ctx context.Context) {
	defer close(sw.done)

	sw.RunOnce()

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.RunOnce()
		}
	}
}

// RunOnce выполняет один проход очистки и возвращает результат.
func (sw *SweepService) RunOnce() SweepResult {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	var result SweepResult
	now := time.Now().UTC()
	dataDir := sw.store.DataDir()

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		sw.logger.Error("Ошибка чтения директории данных",
			slog.String("data_dir", dataDir),
			slog.String("error", err.Error()),
		)
		result.Errors++
		return result
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		switch {
		case strings.HasSuffix(name, ".tmp"):
			result.TempFiles += sw.sweepTemp(entry, now)
		case meta.IsSidecar(name):
			result.StalePending += sw.sweepPending(filepath.Join(dataDir, name), now, &result)
		default:
			result.OrphanBlobs += sw.sweepOrphanBlob(name, &result)
		}
	}

	sweepRunsTotal.Inc()

	if result.StalePending > 0 || result.OrphanBlobs > 0 || result.TempFiles > 0 || result.Errors > 0 {
		sw.logger.Info("Sweep завершён",
			slog.Int("stale_pending", result.StalePending),
			slog.Int("orphan_blobs", result.OrphanBlobs),
			slog.Int("temp_files", result.TempFiles),
			slog.Int("errors", result.Errors),
		)
	}

	return result
}

// sweepTemp удаляет temp-файл, если он старше pendingMaxAge.
// Возвращает 1 если файл удалён.
func (sw *SweepService) sweepTemp(entry os.DirEntry, now time.Time) int {
	info, err := entry.Info()
	if err != nil {
		return 0
	}
	if now.Sub(info.ModTime()) < sw.pendingMaxAge {
		return 0
	}
	if err := os.Remove(filepath.Join(sw.store.DataDir(), entry.Name())); err != nil {
		return 0
	}
	sweepRemovedTotal.WithLabelValues("temp").Inc()
	return 1
}

// sweepPending удаляет брошенную pending-запись вместе с её blob'ом.
// Возвращает 1 если запись удалена.
func (sw *SweepService) sweepPending(path string, now time.Time, result *SweepResult) int {
	rec, err := meta.Read(path)
	if err != nil {
		// Невалидный sidecar — не трогаем, разберётся оператор
		return 0
	}
	if rec.Status != model.StatusPending {
		return 0
	}
	if now.Sub(rec.UploadedAt) < sw.pendingMaxAge {
		return 0
	}

	if err := sw.store.Delete(rec.Filename); err != nil {
		result.Errors++
		return 0
	}
	if err := meta.Delete(sw.store.DataDir(), rec.ID); err != nil {
		result.Errors++
		return 0
	}

	sweepRemovedTotal.WithLabelValues("stale_pending").Inc()
	sw.logger.Warn("Удалена брошенная pending-запись",
		slog.String("id", rec.ID),
		slog.Time("uploaded_at", rec.UploadedAt),
	)
	return 1
}

// sweepOrphanBlob удаляет blob, для которого нет sidecar'а.
// Такой blob недостижим через API и появляется только после сбоя
// между шагами delete. Возвращает 1 если blob удалён.
func (sw *SweepService) sweepOrphanBlob(name string, result *SweepResult) int {
	id := strings.TrimSuffix(name, filepath.Ext(name))
	if id == "" || meta.Exists(sw.store.DataDir(), id) {
		return 0
	}

	if err := sw.store.Delete(name); err != nil {
		result.Errors++
		return 0
	}

	sweepRemovedTotal.WithLabelValues("orphan_blob").Inc()
	sw.logger.Warn("Удалён осиротевший blob", slog.String("filename", name))
	return 1
}

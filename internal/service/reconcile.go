// reconcile.go — сервис фоновой сверки индекса с файловым хранилищем.
//
// Индекс — производная структура: источником истины остаются
// sidecar-файлы на диске. Reconcile пересобирает индекс:
//   - по событиям fsnotify (sidecar создан/удалён/переименован извне)
//   - по периодическому тикеру (IMGHOST_RECONCILE_INTERVAL) как страховка
//
// События fsnotify дебаунсятся, чтобы пачка изменений (rsync, ручное
// копирование) приводила к одной пересборке.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goimghost/internal/api/middleware"
	"github.com/bigkaa/goimghost/internal/storage/index"
	"github.com/bigkaa/goimghost/internal/storage/meta"
)

// reconcileDebounce — задержка между событием fsnotify и пересборкой.
const reconcileDebounce = 500 * time.Millisecond

// Prometheus метрики reconcile
var (
	// reconcileRunsTotal — количество пересборок индекса по источнику запуска.
	reconcileRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imghost_reconcile_runs_total",
		Help: "Общее количество пересборок индекса",
	}, []string{"trigger"})

	// reconcileDurationSeconds — длительность пересборки индекса.
	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "imghost_reconcile_duration_seconds",
		Help:    "Длительность пересборки индекса в секундах",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// ReconcileService — сервис фоновой сверки индекса.
type ReconcileService struct {
	idx      *index.Index
	dataDir  string
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельной пересборки
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReconcileService создаёт сервис reconcile.
func NewReconcileService(idx *index.Index, dataDir string, interval time.Duration, logger *slog.Logger) *ReconcileService {
	return &ReconcileService{
		idx:      idx,
		dataDir:  dataDir,
		interval: interval,
		logger:   logger.With(slog.String("component", "reconcile")),
	}
}

// Start запускает фоновую горутину сверки: fsnotify-наблюдение за
// директорией данных плюс периодический тикер.
// Если watcher создать не удалось, сервис работает только по тикеру.
func (rs *ReconcileService) Start(ctx context.Context) {
	rsCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel
	rs.done = make(chan struct{})

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if addErr := watcher.Add(rs.dataDir); addErr != nil {
			rs.logger.Warn("Не удалось подписаться на события директории данных",
				slog.String("data_dir", rs.dataDir),
				slog.String("error", addErr.Error()),
			)
			watcher.Close()
			watcher = nil
		}
	} else {
		rs.logger.Warn("fsnotify недоступен, сверка только по тикеру",
			slog.String("error", err.Error()),
		)
		watcher = nil
	}

	go rs.run(rsCtx, watcher)

	rs.logger.Info("Reconcile запущен",
		slog.String("interval", rs.interval.String()),
		slog.Bool("fsnotify", watcher != nil),
	)
}

// Stop останавливает фоновый процесс и ждёт завершения горутины.
func (rs *ReconcileService) Stop() {
	if rs.cancel != nil {
		rs.cancel()
	}
	if rs.done != nil {
		<-rs.done
	}
	rs.logger.Info("Reconcile остановлен")
}

// run — основной цикл фоновой горутины.
func (rs *ReconcileService) run(ctx context.Context, watcher *fsnotify.Watcher) {
	defer close(rs.done)
	if watcher != nil {
		defer watcher.Close()
	}

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	// Таймер дебаунса fsnotify-событий; создаётся остановленным
	debounce := time.NewTimer(reconcileDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	var events chan fsnotify.Event
	var errors chan error
	if watcher != nil {
		events = watcher.Events
		errors = watcher.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			rs.RunOnce("ticker")

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !rs.relevant(ev) {
				continue
			}
			// Перезапускаем дебаунс: пересборка после паузы в событиях
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(reconcileDebounce)

		case <-debounce.C:
			rs.RunOnce("fsnotify")

		case err, ok := <-errors:
			if !ok {
				errors = nil
				continue
			}
			rs.logger.Warn("Ошибка fsnotify", slog.String("error", err.Error()))
		}
	}
}

// relevant отбирает события, меняющие набор sidecar-файлов.
// Запись во временные файлы (*.tmp) и в blob'ы индекса не касается.
func (rs *ReconcileService) relevant(ev fsnotify.Event) bool {
	if !meta.IsSidecar(ev.Name) {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) ||
		ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}

// RunOnce выполняет одну пересборку индекса из sidecar-файлов.
// trigger — источник запуска для метрик ("ticker", "fsnotify", "manual").
func (rs *ReconcileService) RunOnce(trigger string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	start := time.Now()

	if err := rs.idx.BuildFromDir(rs.dataDir); err != nil {
		rs.logger.Error("Ошибка пересборки индекса",
			slog.String("error", err.Error()),
		)
		return
	}

	middleware.ImagesTotal.Set(float64(rs.idx.Count()))
	reconcileRunsTotal.WithLabelValues(trigger).Inc()
	reconcileDurationSeconds.Observe(time.Since(start).Seconds())

	rs.logger.Debug("Индекс пересобран",
		slog.String("trigger", trigger),
		slog.Int("records", rs.idx.Count()),
		slog.Duration("duration", time.Since(start)),
	)
}

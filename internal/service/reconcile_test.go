package service

import (
	"context"
	"testing"
	"time"

	"github.com/bigkaa/goimghost/internal/domain/model"
	"github.com/bigkaa/goimghost/internal/storage/meta"
)

// committedRecord создаёт закоммиченную запись для тестов reconcile.
func committedRecord(id string) *model.ImageRecord {
	return &model.ImageRecord{
		ID:         id,
		Filename:   id + ".png",
		UploadedAt: time.Now().UTC(),
		Status:     model.StatusCommitted,
	}
}

// TestReconcile_RunOnce_PicksUpExternalSidecar проверяет, что пересборка
// подхватывает sidecar, появившийся в директории мимо API.
func TestReconcile_RunOnce_PicksUpExternalSidecar(t *testing.T) {
	store, idx := newTestStorage(t)
	svc := NewReconcileService(idx, store.DataDir(), time.Hour, testLogger())

	if err := meta.Write(store.DataDir(), committedRecord("external")); err != nil {
		t.Fatalf("ошибка записи sidecar: %v", err)
	}

	svc.RunOnce("test")

	if idx.Get("external") == nil {
		t.Error("внешняя запись должна появиться в индексе после пересборки")
	}
}

// TestReconcile_RunOnce_DropsRemovedSidecar проверяет, что пересборка
// убирает из индекса запись, sidecar которой удалён извне.
func TestReconcile_RunOnce_DropsRemovedSidecar(t *testing.T) {
	store, idx := newTestStorage(t)
	uploadTestImage(t, store, idx, "doomed", pngBytes, "doomed.png")

	svc := NewReconcileService(idx, store.DataDir(), time.Hour, testLogger())

	if err := meta.Delete(store.DataDir(), "doomed"); err != nil {
		t.Fatalf("ошибка подготовки: %v", err)
	}

	svc.RunOnce("test")

	if idx.Get("doomed") != nil {
		t.Error("запись без sidecar'а должна уйти из индекса после пересборки")
	}
}

// TestReconcile_WatcherPicksUpChange проверяет, что фоновый reconcile
// через fsnotify подхватывает появление sidecar'а без ожидания тикера.
func TestReconcile_WatcherPicksUpChange(t *testing.T) {
	store, idx := newTestStorage(t)
	svc := NewReconcileService(idx, store.DataDir(), time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.Start(ctx)
	defer svc.Stop()

	if err := meta.Write(store.DataDir(), committedRecord("watched")); err != nil {
		t.Fatalf("ошибка записи sidecar: %v", err)
	}

	// Debounce событий плюс запас на медленные файловые системы
	deadline := time.After(5 * time.Second)
	for idx.Get("watched") == nil {
		select {
		case <-deadline:
			t.Fatal("reconcile не подхватил появившийся sidecar")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

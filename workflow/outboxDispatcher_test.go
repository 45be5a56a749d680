package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/messdesk/mess_backend/config"
	"github.com/messdesk/mess_backend/models"
	"gorm.io/gorm"
)

func openDispatcherDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", t.Name())
	db, err := config.OpenDatabase(config.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func insertEvent(t *testing.T, db *gorm.DB, eventType models.BillEventType, billId int) models.BillEvent {
	t.Helper()
	past := time.Now().UTC().Add(-time.Minute)
	ev := models.BillEvent{
		EventType:     eventType,
		BillId:        billId,
		UserId:        7,
		Payload:       `{"month":1,"year":2025}`,
		CorrelationId: "corr-1",
		PublishStatus: models.OutboxPublishStatusPending,
		NextAttemptAt: &past,
	}
	if err := db.Create(&ev).Error; err != nil {
		t.Fatalf("insert event: %v", err)
	}
	return ev
}

func reloadEvent(t *testing.T, db *gorm.DB, id int) models.BillEvent {
	t.Helper()
	var ev models.BillEvent
	if err := db.First(&ev, id).Error; err != nil {
		t.Fatalf("reload event %d: %v", id, err)
	}
	return ev
}

func TestDispatchOncePublishesPendingEvents(t *testing.T) {
	db := openDispatcherDB(t)
	first := insertEvent(t, db, models.BillEventGenerated, 1)
	second := insertEvent(t, db, models.BillEventPaid, 2)

	var sent []config.BillEventMessage
	d := NewOutboxDispatcher(db, nil)
	d.Publish = func(ctx context.Context, msg config.BillEventMessage) (string, error) {
		sent = append(sent, msg)
		return fmt.Sprintf("msg-%d", msg.ID), nil
	}

	n, err := d.DispatchOnce(context.Background())
	if err != nil {
		t.Fatalf("DispatchOnce: %v", err)
	}
	if n != 2 || len(sent) != 2 {
		t.Fatalf("published %d (sent %d), want 2", n, len(sent))
	}
	if sent[0].ID != first.ID || sent[0].EventType != string(models.BillEventGenerated) || sent[0].CorrelationId != "corr-1" {
		t.Fatalf("unexpected first message %+v", sent[0])
	}

	for _, id := range []int{first.ID, second.ID} {
		ev := reloadEvent(t, db, id)
		if ev.PublishStatus != models.OutboxPublishStatusPublished {
			t.Fatalf("event %d status = %s, want PUBLISHED", id, ev.PublishStatus)
		}
		if ev.PubSubMessageId != fmt.Sprintf("msg-%d", id) || ev.PublishedAt == nil || ev.AttemptCount != 1 {
			t.Fatalf("event %d not stamped: %+v", id, ev)
		}
	}

	n, err = d.DispatchOnce(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("second pass published %d, err %v; want 0", n, err)
	}
}

func TestDispatchOnceBacksOffAndGoesDead(t *testing.T) {
	db := openDispatcherDB(t)
	ev := insertEvent(t, db, models.BillEventApproved, 3)

	d := NewOutboxDispatcher(db, nil)
	d.MaxAttempts = 2
	d.InitialBackoff = time.Hour
	d.Publish = func(ctx context.Context, msg config.BillEventMessage) (string, error) {
		return "", errors.New("broker down")
	}

	if _, err := d.DispatchOnce(context.Background()); err != nil {
		t.Fatalf("DispatchOnce: %v", err)
	}
	got := reloadEvent(t, db, ev.ID)
	if got.PublishStatus != models.OutboxPublishStatusFailed || got.LastError != "broker down" {
		t.Fatalf("after first failure: %+v", got)
	}
	if got.NextAttemptAt == nil || got.NextAttemptAt.Before(time.Now().Add(30*time.Minute)) {
		t.Fatalf("expected backoff into the future, got %v", got.NextAttemptAt)
	}

	// not due yet
	if n, _ := d.DispatchOnce(context.Background()); n != 0 {
		t.Fatalf("event retried before backoff elapsed")
	}
	if reloadEvent(t, db, ev.ID).AttemptCount != 1 {
		t.Fatalf("attempt count changed while backing off")
	}

	past := time.Now().UTC().Add(-time.Second)
	if err := db.Model(&models.BillEvent{}).Where("id = ?", ev.ID).Update("next_attempt_at", past).Error; err != nil {
		t.Fatalf("rewind: %v", err)
	}
	if _, err := d.DispatchOnce(context.Background()); err != nil {
		t.Fatalf("DispatchOnce: %v", err)
	}
	got = reloadEvent(t, db, ev.ID)
	if got.PublishStatus != models.OutboxPublishStatusDead || got.AttemptCount != 2 {
		t.Fatalf("expected DEAD after max attempts, got %+v", got)
	}
}

func TestDispatchOnceReclaimsStaleProcessing(t *testing.T) {
	db := openDispatcherDB(t)
	ev := insertEvent(t, db, models.BillEventDisputed, 4)
	stale := time.Now().UTC().Add(-time.Hour)
	if err := db.Model(&models.BillEvent{}).Where("id = ?", ev.ID).Updates(map[string]interface{}{
		"publish_status": models.OutboxPublishStatusProcessing,
		"locked_at":      stale,
		"locked_by":      "gone",
		"attempt_count":  1,
	}).Error; err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	d := NewOutboxDispatcher(db, nil)
	d.Publish = func(ctx context.Context, msg config.BillEventMessage) (string, error) { return "ok", nil }
	n, err := d.DispatchOnce(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("published %d, err %v; want 1", n, err)
	}
	got := reloadEvent(t, db, ev.ID)
	if got.PublishStatus != models.OutboxPublishStatusPublished || got.AttemptCount != 2 || got.LockedBy != "" {
		t.Fatalf("unexpected row %+v", got)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	d := &OutboxDispatcher{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second}
	cases := map[int]time.Duration{1: time.Second, 2: 2 * time.Second, 3: 4 * time.Second, 4: 5 * time.Second, 10: 5 * time.Second}
	for attempt, want := range cases {
		if got := d.backoffFor(attempt); got != want {
			t.Fatalf("backoffFor(%d) = %v, want %v", attempt, got, want)
		}
	}
}

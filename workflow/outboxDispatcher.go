package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/messdesk/mess_backend/config"
	"github.com/messdesk/mess_backend/metrics"
	"github.com/messdesk/mess_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PublishFunc delivers one event and returns the broker message id.
type PublishFunc func(ctx context.Context, msg config.BillEventMessage) (string, error)

// OutboxDispatcher publishes committed bill events. Delivery is at least once;
// consumers dedupe on the event id.
type OutboxDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	Publish      PublishFunc
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:             db,
		Logger:         logger,
		Publish:        config.PublishBillEvent,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   time.Second,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     10 * time.Minute,
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, err := d.DispatchOnce(ctx); err != nil && d.Logger != nil {
			config.LogError(d.Logger, "OutboxDispatcher", "Run", "dispatch batch", d.DispatcherID, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// DispatchOnce claims one batch, publishes it and returns how many events
// were published.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	if d.DB == nil || d.Publish == nil {
		return 0, nil
	}
	now := time.Now().UTC()
	claimed, err := d.claim(ctx, now)
	if err != nil || len(claimed) == 0 {
		return 0, err
	}

	published := 0
	for _, ev := range claimed {
		if ev.PublishStatus == models.OutboxPublishStatusDead {
			continue
		}
		msgID, pubErr := d.Publish(ctx, toMessage(ev))
		if pubErr != nil {
			d.markFailed(ctx, ev, pubErr)
			continue
		}
		d.markPublished(ctx, ev.ID, msgID)
		published++
	}
	return published, nil
}

// claim picks PENDING/FAILED rows that are due plus PROCESSING rows whose
// dispatcher stopped before finishing.
func (d *OutboxDispatcher) claim(ctx context.Context, now time.Time) ([]models.BillEvent, error) {
	staleBefore := now.Add(-d.LockTimeout)
	var claimed []models.BillEvent
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where(`(publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?))
				OR (publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?)`,
				[]models.OutboxPublishStatus{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now,
				models.OutboxPublishStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			if d.MaxAttempts > 0 && claimed[i].AttemptCount >= d.MaxAttempts {
				claimed[i].PublishStatus = models.OutboxPublishStatusDead
				if err := tx.Model(&models.BillEvent{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"publish_status":  models.OutboxPublishStatusDead,
					"last_error":      fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts),
					"next_attempt_at": nil,
					"locked_at":       nil,
					"locked_by":       "",
				}).Error; err != nil {
					return err
				}
				metrics.OutboxPublished.WithLabelValues("dead").Inc()
				continue
			}
			claimed[i].PublishStatus = models.OutboxPublishStatusProcessing
			claimed[i].AttemptCount++
			if err := tx.Model(&models.BillEvent{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"publish_status":  models.OutboxPublishStatusProcessing,
				"locked_at":       now,
				"locked_by":       d.DispatcherID,
				"attempt_count":   gorm.Expr("attempt_count + 1"),
				"next_attempt_at": nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

func toMessage(ev models.BillEvent) config.BillEventMessage {
	payload := json.RawMessage(ev.Payload)
	if !json.Valid(payload) {
		payload = json.RawMessage("null")
	}
	return config.BillEventMessage{
		ID:            ev.ID,
		EventType:     string(ev.EventType),
		BillId:        ev.BillId,
		UserId:        ev.UserId,
		OccurredAt:    ev.CreatedAt,
		Payload:       payload,
		CorrelationId: ev.CorrelationId,
	}
}

func (d *OutboxDispatcher) markPublished(ctx context.Context, id int, msgID string) {
	now := time.Now().UTC()
	err := d.DB.WithContext(ctx).Model(&models.BillEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusPublished,
			"published_at":       now,
			"pub_sub_message_id": msgID,
			"last_error":         "",
			"locked_at":          nil,
			"locked_by":          "",
		}).Error
	if err != nil && d.Logger != nil {
		config.LogError(d.Logger, "OutboxDispatcher", "markPublished", "update outbox row", id, err)
	}
	metrics.OutboxPublished.WithLabelValues("published").Inc()
}

// backoffFor doubles InitialBackoff per attempt, capped at MaxBackoff.
func (d *OutboxDispatcher) backoffFor(attempt int) time.Duration {
	backoff := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if d.MaxBackoff > 0 && backoff >= d.MaxBackoff {
			return d.MaxBackoff
		}
	}
	return backoff
}

func (d *OutboxDispatcher) markFailed(ctx context.Context, ev models.BillEvent, pubErr error) {
	db := d.DB.WithContext(ctx)
	updates := map[string]interface{}{
		"last_error": pubErr.Error(),
		"locked_at":  nil,
		"locked_by":  "",
	}
	result := "failed"
	if d.MaxAttempts > 0 && ev.AttemptCount >= d.MaxAttempts {
		updates["publish_status"] = models.OutboxPublishStatusDead
		updates["next_attempt_at"] = nil
		result = "dead"
	} else {
		updates["publish_status"] = models.OutboxPublishStatusFailed
		updates["next_attempt_at"] = time.Now().UTC().Add(d.backoffFor(ev.AttemptCount))
	}
	if err := db.Model(&models.BillEvent{}).Where("id = ?", ev.ID).Updates(updates).Error; err != nil && d.Logger != nil {
		config.LogError(d.Logger, "OutboxDispatcher", "markFailed", "update outbox row", ev.ID, err)
	}
	metrics.OutboxPublished.WithLabelValues(result).Inc()

	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"module":     "OutboxDispatcher",
			"event_id":   ev.ID,
			"event_type": ev.EventType,
			"attempt":    ev.AttemptCount,
			"status":     updates["publish_status"],
		}).Error("bill event publish failed: " + pubErr.Error())
	}
}

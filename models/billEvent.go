package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/messdesk/mess_backend/config"
	"github.com/messdesk/mess_backend/utils"
	"gorm.io/gorm"
)

// BillEvent is the transactional outbox row for bill lifecycle changes.
// It is written inside the same transaction as the change and published
// after commit by the outbox dispatcher.
type BillEvent struct {
	ID              int                 `gorm:"primary_key" json:"id"`
	EventType       BillEventType       `gorm:"size:40;index;not null" json:"event_type"`
	BillId          int                 `gorm:"index;not null" json:"bill_id"`
	UserId          int                 `gorm:"not null" json:"user_id"`
	Payload         string              `gorm:"type:text" json:"payload"`
	CorrelationId   string              `gorm:"size:64" json:"correlation_id"`
	PublishStatus   OutboxPublishStatus `gorm:"size:20;index:idx_bill_event_dispatch,priority:1;not null" json:"publish_status"`
	NextAttemptAt   *time.Time          `gorm:"index:idx_bill_event_dispatch,priority:2" json:"next_attempt_at"`
	AttemptCount    int                 `gorm:"not null" json:"attempt_count"`
	LockedAt        *time.Time          `json:"locked_at"`
	LockedBy        string              `gorm:"size:100" json:"locked_by"`
	LastError       string              `gorm:"type:text" json:"last_error"`
	PublishedAt     *time.Time          `json:"published_at"`
	PubSubMessageId string              `gorm:"size:255" json:"pubsub_message_id"`
	CreatedAt       time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

type billEventPayload struct {
	Month          int         `json:"month"`
	Year           int         `json:"year"`
	Status         BillStatus  `json:"status"`
	FoodAmount     string      `json:"food_amount"`
	WaterTeaAmount string      `json:"water_tea_amount"`
	TotalAmount    string      `json:"total_amount"`
	Extra          interface{} `json:"extra,omitempty"`
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if id, ok := utils.GetCorrelationIdFromContext(ctx); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

func recordBillEvent(ctx context.Context, tx *gorm.DB, eventType BillEventType, bill *Bill, extra interface{}) error {
	payload, err := json.Marshal(billEventPayload{
		Month:          bill.Month,
		Year:           bill.Year,
		Status:         bill.Status,
		FoodAmount:     bill.FoodAmount.StringFixed(2),
		WaterTeaAmount: bill.WaterTeaAmount.StringFixed(2),
		TotalAmount:    bill.TotalAmount.StringFixed(2),
		Extra:          extra,
	})
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	event := BillEvent{
		EventType:     eventType,
		BillId:        bill.ID,
		UserId:        bill.UserId,
		Payload:       string(payload),
		CorrelationId: correlationIdFromContextOrNew(ctx),
		PublishStatus: OutboxPublishStatusPending,
		NextAttemptAt: &now,
	}
	return tx.Create(&event).Error
}

// ListBillEvents returns the newest events first, optionally for one bill or
// publish status.
func ListBillEvents(ctx context.Context, billId int, status *OutboxPublishStatus, limit int) ([]*BillEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := config.GetDB().WithContext(ctx).Model(&BillEvent{})
	if billId > 0 {
		q = q.Where("bill_id = ?", billId)
	}
	if status != nil {
		q = q.Where("publish_status = ?", *status)
	}
	var events []*BillEvent
	err := q.Order("id DESC").Limit(limit).Find(&events).Error
	return events, err
}

// ReplayBillEvent puts a FAILED or DEAD event back in the dispatch queue with
// a fresh attempt budget. Published events are not replayed.
func ReplayBillEvent(ctx context.Context, id int) (*BillEvent, error) {
	db := config.GetDB().WithContext(ctx)
	now := time.Now().UTC()
	res := db.Model(&BillEvent{}).
		Where("id = ? AND publish_status IN ?", id,
			[]OutboxPublishStatus{OutboxPublishStatusFailed, OutboxPublishStatusDead}).
		Updates(map[string]interface{}{
			"publish_status":  OutboxPublishStatusPending,
			"next_attempt_at": now,
			"attempt_count":   0,
			"locked_at":       nil,
			"locked_by":       "",
		})
	if res.Error != nil {
		return nil, res.Error
	}
	var event BillEvent
	if err := db.First(&event, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidTransition
	}
	return &event, nil
}

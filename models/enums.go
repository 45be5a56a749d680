package models

import "errors"

type UserRole string

const (
	UserRoleAdmin   UserRole = "Admin"
	UserRoleStudent UserRole = "Student"
)

func (r UserRole) IsValid() bool {
	return r == UserRoleAdmin || r == UserRoleStudent
}

func ParseUserRole(s string) (UserRole, error) {
	r := UserRole(s)
	if !r.IsValid() {
		return "", errors.New("invalid role")
	}
	return r, nil
}

type MenuCategory string

const (
	MenuCategoryFood     MenuCategory = "Food"
	MenuCategoryWaterTea MenuCategory = "WaterTea"
)

func (c MenuCategory) IsValid() bool {
	return c == MenuCategoryFood || c == MenuCategoryWaterTea
}

type BillStatus string

const (
	BillStatusPending   BillStatus = "Pending"
	BillStatusGenerated BillStatus = "Generated"
	BillStatusApproved  BillStatus = "Approved"
	BillStatusPaid      BillStatus = "Paid"
	BillStatusDisputed  BillStatus = "Disputed"
)

func (s BillStatus) IsValid() bool {
	switch s {
	case BillStatusPending, BillStatusGenerated, BillStatusApproved, BillStatusPaid, BillStatusDisputed:
		return true
	}
	return false
}

type BillEventType string

const (
	BillEventGenerated       BillEventType = "BILL_GENERATED"
	BillEventRegenerated     BillEventType = "BILL_REGENERATED"
	BillEventApproved        BillEventType = "BILL_APPROVED"
	BillEventDisputed        BillEventType = "BILL_DISPUTED"
	BillEventPaid            BillEventType = "BILL_PAID"
	BillEventPaymentRecorded BillEventType = "PAYMENT_RECORDED"
)

type OutboxPublishStatus string

const (
	OutboxPublishStatusPending    OutboxPublishStatus = "PENDING"
	OutboxPublishStatusProcessing OutboxPublishStatus = "PROCESSING"
	OutboxPublishStatusPublished  OutboxPublishStatus = "PUBLISHED"
	OutboxPublishStatusFailed     OutboxPublishStatus = "FAILED"
	OutboxPublishStatusDead       OutboxPublishStatus = "DEAD"
)

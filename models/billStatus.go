package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/messdesk/mess_backend/config"
	"github.com/messdesk/mess_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forward transitions; Disputed is reachable from every other state
var billTransitions = map[BillStatus]map[BillStatus]bool{
	BillStatusPending:   {BillStatusGenerated: true},
	BillStatusGenerated: {BillStatusApproved: true},
	BillStatusApproved:  {BillStatusPaid: true},
}

func (s BillStatus) CanTransitionTo(next BillStatus) bool {
	if next == BillStatusDisputed {
		return s != BillStatusDisputed
	}
	return billTransitions[s][next]
}

// transitionBill is the only place a bill's status is written after creation.
// The update is guarded on the status the caller read.
func transitionBill(tx *gorm.DB, bill *Bill, next BillStatus, fields map[string]interface{}) error {
	if !bill.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, bill.Status, next)
	}
	updates := map[string]interface{}{}
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = next
	res := tx.Model(&Bill{}).Where("id = ? AND status = ?", bill.ID, bill.Status).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	bill.Status = next
	return nil
}

func lockBill(tx *gorm.DB, id int) (*Bill, error) {
	var bill Bill
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&bill, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &bill, nil
}

// ApproveBill moves a Generated bill to Approved.
func ApproveBill(ctx context.Context, billId int) (*Bill, error) {
	db := config.GetDB()
	actor := utils.ActorFromContext(ctx)
	now := time.Now().UTC()

	var bill *Bill
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		bill, err = lockBill(tx, billId)
		if err != nil {
			return err
		}
		if err := transitionBill(tx, bill, BillStatusApproved, map[string]interface{}{
			"approved_at": now,
			"approved_by": actor,
		}); err != nil {
			return err
		}
		bill.ApprovedAt = &now
		bill.ApprovedBy = actor
		return recordBillEvent(ctx, tx, BillEventApproved, bill, nil)
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

type DisputeInput struct {
	Remarks string `json:"remarks" binding:"required,max=500"`
}

// DisputeBill marks a bill Disputed. Students may only dispute their own bills.
func DisputeBill(ctx context.Context, billId int, input *DisputeInput, requesterId int, isAdmin bool) (*Bill, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	db := config.GetDB()
	var bill *Bill
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		bill, err = lockBill(tx, billId)
		if err != nil {
			return err
		}
		if !isAdmin && bill.UserId != requesterId {
			return utils.ErrorRecordNotFound
		}
		remarks := strings.TrimSpace(input.Remarks)
		if err := transitionBill(tx, bill, BillStatusDisputed, map[string]interface{}{"remarks": remarks}); err != nil {
			return err
		}
		bill.Remarks = remarks
		return recordBillEvent(ctx, tx, BillEventDisputed, bill, map[string]interface{}{
			"remarks":      remarks,
			"requested_by": requesterId,
		})
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

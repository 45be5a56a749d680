package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/messdesk/mess_backend/config"
	"github.com/messdesk/mess_backend/metrics"
	"github.com/messdesk/mess_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/messdesk/mess_backend/models")

const billingLockTTL = 5 * time.Minute

type GenerateBillsInput struct {
	Month int `json:"month" binding:"required,min=1,max=12"`
	Year  int `json:"year" binding:"required,min=2000,max=2100"`
}

type GenerateBillsResult struct {
	Month       int             `json:"month"`
	Year        int             `json:"year"`
	Created     int             `json:"created"`
	Updated     int             `json:"updated"`
	Locked      int             `json:"locked"`
	Settled     int             `json:"settled"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Message     string          `json:"message"`
}

func billingLockKey(month int, year int) string {
	return fmt.Sprintf("lock:bills:%04d-%02d", year, month)
}

// obtainBillingLock serializes generation per period across instances.
// Without redis, or when redis errors, generation proceeds unlocked and the
// unique (user_id, month, year) index still prevents duplicate bills.
func obtainBillingLock(ctx context.Context, month int, year int) (*redislock.Lock, error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, nil
	}
	lock, err := locker.Obtain(ctx, billingLockKey(month, year), billingLockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrGenerationInProgress
	}
	if err != nil {
		config.LogError(config.GetLogger(), "BillModel", "obtainBillingLock", "proceeding without lock", billingLockKey(month, year), err)
		return nil, nil
	}
	return lock, nil
}

// GenerateMonthlyBills recomputes every student's bill for the period from
// present attendance days. Existing bills are overwritten with fresh totals
// and details, so repeated runs over unchanged attendance are no-ops.
// Students with nothing to bill are skipped and Paid bills are left alone.
// The run is a single transaction.
func GenerateMonthlyBills(ctx context.Context, month int, year int) (*GenerateBillsResult, error) {
	if err := utils.ValidateMonthYear(month, year); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "GenerateMonthlyBills", trace.WithAttributes(
		attribute.Int("bill.month", month),
		attribute.Int("bill.year", year),
	))
	defer span.End()

	lock, err := obtainBillingLock(ctx, month, year)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if lock != nil {
		defer func() { _ = lock.Release(context.Background()) }()
	}

	db := config.GetDB()
	logger := config.GetLogger()
	actor := utils.ActorFromContext(ctx)
	now := time.Now().UTC()
	from, to := utils.MonthRange(year, month)

	result := GenerateBillsResult{Month: month, Year: year, TotalAmount: decimal.Zero}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lines, err := loadChargeLines(tx, chargeLineFilter{From: from, To: to, StudentsOnly: true})
		if err != nil {
			return err
		}
		userIds, byUser := groupLinesByUser(lines)

		var existing []Bill
		if err := tx.Where("month = ? AND year = ?", month, year).Find(&existing).Error; err != nil {
			return err
		}
		existingByUser := make(map[int]*Bill, len(existing))
		for i := range existing {
			existingByUser[existing[i].UserId] = &existing[i]
		}

		for _, userId := range userIds {
			comp := ComputeBill(byUser[userId])
			if comp.IsEmpty() {
				continue
			}

			amounts := map[string]interface{}{
				"food_amount":      comp.FoodAmount,
				"water_tea_amount": comp.WaterTeaAmount,
				"total_amount":     comp.TotalAmount,
				"generated_at":     now,
				"generated_by":     actor,
			}

			bill, ok := existingByUser[userId]
			if ok {
				if bill.Status == BillStatusPaid {
					result.Locked++
					continue
				}
				if err := regenerateBill(tx, bill, amounts); err != nil {
					return err
				}
				if err := tx.Where("bill_id = ?", bill.ID).Delete(&BillDetail{}).Error; err != nil {
					return err
				}
				result.Updated++
			} else {
				bill = &Bill{
					UserId:         userId,
					Month:          month,
					Year:           year,
					FoodAmount:     comp.FoodAmount,
					WaterTeaAmount: comp.WaterTeaAmount,
					TotalAmount:    comp.TotalAmount,
					Status:         BillStatusGenerated,
					GeneratedAt:    &now,
					GeneratedBy:    actor,
				}
				if err := tx.Create(bill).Error; err != nil {
					if isDuplicateKeyErr(err) {
						return ErrConcurrentUpdate
					}
					return err
				}
				result.Created++
			}
			bill.FoodAmount = comp.FoodAmount
			bill.WaterTeaAmount = comp.WaterTeaAmount
			bill.TotalAmount = comp.TotalAmount

			for i := range comp.Details {
				comp.Details[i].BillId = bill.ID
			}
			if err := tx.CreateInBatches(comp.Details, 200).Error; err != nil {
				return err
			}

			eventType := BillEventGenerated
			if ok {
				eventType = BillEventRegenerated
			}
			if err := recordBillEvent(ctx, tx, eventType, bill, map[string]interface{}{"lines": len(comp.Details)}); err != nil {
				return err
			}
			// a lower total can leave an Approved bill fully covered
			if ok && bill.Status == BillStatusApproved {
				paid, err := sumPaymentsByBill(tx, []int{bill.ID})
				if err != nil {
					return err
				}
				if err := settleIfCovered(ctx, tx, bill, paid[bill.ID]); err != nil {
					return err
				}
				if bill.Status == BillStatusPaid {
					result.Settled++
				}
			}
			result.TotalAmount = result.TotalAmount.Add(comp.TotalAmount)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		config.LogError(logger, "BillModel", "GenerateMonthlyBills", "generation rolled back", map[string]int{"month": month, "year": year}, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("bill.created", result.Created),
		attribute.Int("bill.updated", result.Updated),
	)
	metrics.BillsGenerated.WithLabelValues("created").Add(float64(result.Created))
	metrics.BillsGenerated.WithLabelValues("updated").Add(float64(result.Updated))

	result.Message = generationMessage(result)
	return &result, nil
}

// regenerateBill overwrites totals. A Pending bill advances to Generated;
// any other status is kept.
func regenerateBill(tx *gorm.DB, bill *Bill, amounts map[string]interface{}) error {
	if bill.Status == BillStatusPending {
		return transitionBill(tx, bill, BillStatusGenerated, amounts)
	}
	res := tx.Model(&Bill{}).Where("id = ? AND status = ?", bill.ID, bill.Status).Updates(amounts)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

func generationMessage(r GenerateBillsResult) string {
	period := time.Date(r.Year, time.Month(r.Month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
	if r.Created == 0 && r.Updated == 0 {
		if r.Locked > 0 {
			return fmt.Sprintf("All %d bills for %s are already paid.", r.Locked, period)
		}
		return fmt.Sprintf("No attendance records found for %s.", period)
	}
	msg := fmt.Sprintf("Bills generated for %s. Created: %d. Updated: %d. Total Amount: Rs %s",
		period, r.Created, r.Updated, r.TotalAmount.StringFixed(2))
	if r.Locked > 0 {
		msg += fmt.Sprintf(". Skipped %d paid bills", r.Locked)
	}
	if r.Settled > 0 {
		msg += fmt.Sprintf(". Marked %d covered bills as paid", r.Settled)
	}
	return msg
}

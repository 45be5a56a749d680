// generate-bills runs the monthly bill aggregator outside the HTTP server,
// e.g. from a scheduler on the first of the month.
//
// Usage:
//
//	go run ./cmd/generate-bills -month 1 -year 2025
//	go run ./cmd/generate-bills -previous
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/messdesk/mess_backend/config"
	"github.com/messdesk/mess_backend/models"
	"github.com/messdesk/mess_backend/utils"
	"github.com/sirupsen/logrus"
)

func main() {
	now := time.Now().UTC()
	month := flag.Int("month", int(now.Month()), "Billing month (1-12)")
	year := flag.Int("year", now.Year(), "Billing year")
	previous := flag.Bool("previous", false, "Bill the month before the current one; overrides -month/-year")
	timeout := flag.Duration("timeout", 10*time.Minute, "Abort if generation takes longer than this")
	flag.Parse()

	if *previous {
		prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		*month, *year = int(prev.Month()), prev.Year()
	}
	if err := utils.ValidateMonthYear(*month, *year); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry()
	logger := config.GetLogger()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = utils.SetUserNameInContext(ctx, "System")
	ctx = utils.SetCorrelationIdInContext(ctx, fmt.Sprintf("cli-generate-bills-%04d-%02d", *year, *month))

	result, err := models.GenerateMonthlyBills(ctx, *month, *year)
	if err != nil {
		config.LogError(logger, "generate-bills", "main", "GenerateMonthlyBills", fmt.Sprintf("%04d-%02d", *year, *month), err)
		os.Exit(1)
	}
	logger.WithFields(logrus.Fields{
		"month":        result.Month,
		"year":         result.Year,
		"created":      result.Created,
		"updated":      result.Updated,
		"locked":       result.Locked,
		"total_amount": result.TotalAmount.StringFixed(2),
	}).Info(result.Message)
	fmt.Println(result.Message)
}

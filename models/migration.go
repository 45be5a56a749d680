package models

import (
	"log"

	"github.com/messdesk/mess_backend/config"
	"gorm.io/gorm"
)

func allModels() []interface{} {
	return []interface{}{
		&User{},
		&MessGroup{}, &UserMessGroup{},
		&Menu{},
		&Attendance{}, &AttendanceMenuItem{},
		&Bill{}, &BillDetail{}, &Payment{},
		&BillEvent{},
	}
}

// Migrate creates or updates every table on db.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(allModels()...)
}

func MigrateTable() {
	if err := Migrate(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}

package models

import (
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrInactiveAccount      = errors.New("your account has been deactivated, please contact the administrator")
	ErrDuplicateEmail       = errors.New("email is already registered")
	ErrDuplicateName        = errors.New("name is already taken")
	ErrCannotDeleteSelf     = errors.New("you cannot delete your own account")
	ErrUserHasBills         = errors.New("user has bills and cannot be deleted")
	ErrMenuNotEffective     = errors.New("menu item is not available on the attendance date")
	ErrInvalidTransition    = errors.New("invalid bill status transition")
	ErrBillNotPayable       = errors.New("payments can only be recorded against approved bills")
	ErrBillAlreadyPaid      = errors.New("bill is already paid")
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrForbidden            = errors.New("not allowed")
	ErrGenerationInProgress = errors.New("bill generation for this month is already running")
	ErrConcurrentUpdate     = errors.New("record was changed concurrently, please retry")
)

// isDuplicateKeyErr recognises unique violations from any supported driver.
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysqlDriver.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return false
}

// IsConflict reports errors that map to a 409 response.
func IsConflict(err error) bool {
	switch {
	case errors.Is(err, ErrDuplicateEmail),
		errors.Is(err, ErrDuplicateName),
		errors.Is(err, ErrUserHasBills),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrBillNotPayable),
		errors.Is(err, ErrBillAlreadyPaid),
		errors.Is(err, ErrGenerationInProgress),
		errors.Is(err, ErrConcurrentUpdate):
		return true
	}
	return false
}

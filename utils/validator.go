package utils

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/messdesk/mess_backend/config"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// RegisterValidations installs the custom tags used by request structs:
// gmail, strongpassword and phone.
func RegisterValidations(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	if err := v.RegisterValidation("gmail", func(fl validator.FieldLevel) bool {
		return IsGmailAddress(fl.Field().String())
	}); err != nil {
		return err
	}
	if err := v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		if s == "" {
			return true
		}
		return ValidatePhoneNumber(s, config.PhoneRegion()) == nil
	})
}

// Validator returns the process wide validator. It reads the same
// `binding` tags gin uses so request structs validate identically outside HTTP.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.SetTagName("binding")
		if err := RegisterValidations(validate); err != nil {
			panic(err)
		}
	})
	return validate
}

// ValidateStruct runs Validator and converts failures into *ValidationError.
func ValidateStruct(s any) error {
	if err := Validator().Struct(s); err != nil {
		return &ValidationError{Fields: ProcessValidationErrors(err)}
	}
	return nil
}

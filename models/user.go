package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/messdesk/mess_backend/config"
	"github.com/messdesk/mess_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	FullName  string    `gorm:"size:200;not null" json:"full_name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Phone     string    `gorm:"size:32" json:"phone"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      UserRole  `gorm:"size:20;index;not null" json:"role"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type RegisterInput struct {
	FullName        string `json:"full_name" binding:"required,max=200"`
	Email           string `json:"email" binding:"required,email,gmail"`
	Phone           string `json:"phone" binding:"omitempty,phone"`
	Password        string `json:"password" binding:"required,min=6,max=100,strongpassword"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=Password"`
}

type NewUser struct {
	FullName string   `json:"full_name" binding:"required,max=200"`
	Email    string   `json:"email" binding:"required,email,gmail"`
	Phone    string   `json:"phone" binding:"omitempty,phone"`
	Password string   `json:"password" binding:"required,min=6,max=100,strongpassword"`
	Role     UserRole `json:"role" binding:"required,oneof=Admin Student"`
}

type UpdateProfileInput struct {
	FullName string `json:"full_name" binding:"required,max=200"`
	Phone    string `json:"phone" binding:"omitempty,phone"`
}

type ChangePasswordInput struct {
	OldPassword     string `json:"old_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6,max=100,strongpassword"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=NewPassword"`
}

type LoginInfo struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

func revokedTokenKey(jti string) string {
	return "RevokedToken:" + jti
}

func (u *User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

func (u *User) PrepareGive() {
	u.Password = ""
}

// Register creates a self-service account. Public sign-ups are always students.
func Register(ctx context.Context, input *RegisterInput) (*User, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	return createUser(ctx, input.FullName, input.Email, input.Phone, input.Password, UserRoleStudent)
}

// CreateUser is the admin path and may assign any role.
func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	return createUser(ctx, input.FullName, input.Email, input.Phone, input.Password, input.Role)
}

func createUser(ctx context.Context, fullName, email, phone, password string, role UserRole) (*User, error) {
	db := config.GetDB()
	email = utils.NormalizeEmail(email)

	if err := utils.ValidateUnique[User](ctx, db, "email", email, 0); err != nil {
		return nil, ErrDuplicateEmail
	}

	if phone = strings.TrimSpace(phone); phone != "" {
		formatted, err := utils.FormatPhoneNumber(phone, config.PhoneRegion())
		if err != nil {
			return nil, utils.NewValidationError("phone", err.Error())
		}
		phone = formatted
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := User{
		FullName: strings.TrimSpace(fullName),
		Email:    email,
		Phone:    phone,
		Password: string(hashed),
		Role:     role,
		IsActive: utils.NewTrue(),
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return ErrDuplicateEmail
			}
			return err
		}
		if role == UserRoleStudent {
			return enrollMandatoryGroups(tx, user.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	user.PrepareGive()
	return &user, nil
}

func Login(ctx context.Context, email string, password string) (*LoginInfo, error) {
	db := config.GetDB()

	var user User
	err := db.WithContext(ctx).Where("email = ?", utils.NormalizeEmail(email)).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Active() {
		return nil, ErrInactiveAccount
	}

	token, _, err := utils.JwtGenerate(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}

	user.PrepareGive()
	return &LoginInfo{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(utils.GetTokenLifespan()),
		User:      &user,
	}, nil
}

// Logout puts the token id on the redis deny list until it would expire anyway.
func Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return config.SetRedisValue(ctx, revokedTokenKey(jti), "1", ttl)
}

func IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	_, exists, err := config.GetRedisValue(ctx, revokedTokenKey(jti))
	return exists, err
}

func GetUser(ctx context.Context, id int) (*User, error) {
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	user.PrepareGive()
	return &user, nil
}

// ListUsers returns users ordered by name, optionally filtered by role.
func ListUsers(ctx context.Context, role *UserRole) ([]*User, error) {
	db := config.GetDB()
	var users []*User
	q := db.WithContext(ctx).Model(&User{})
	if role != nil {
		q = q.Where("role = ?", *role)
	}
	if err := q.Order("full_name").Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		u.PrepareGive()
	}
	return users, nil
}

func UpdateProfile(ctx context.Context, userId int, input *UpdateProfileInput) (*User, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	phone := strings.TrimSpace(input.Phone)
	if phone != "" {
		formatted, err := utils.FormatPhoneNumber(phone, config.PhoneRegion())
		if err != nil {
			return nil, utils.NewValidationError("phone", err.Error())
		}
		phone = formatted
	}

	db := config.GetDB()
	res := db.WithContext(ctx).Model(&User{}).Where("id = ?", userId).Updates(map[string]interface{}{
		"full_name": strings.TrimSpace(input.FullName),
		"phone":     phone,
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return GetUser(ctx, userId)
}

func ChangePassword(ctx context.Context, userId int, input *ChangePasswordInput) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).First(&user, userId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		return err
	}
	if err := utils.ComparePassword(user.Password, input.OldPassword); err != nil {
		return utils.NewValidationError("old_password", "incorrect")
	}
	hashed, err := utils.HashPassword(input.NewPassword)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Model(&User{}).Where("id = ?", userId).Update("password", string(hashed)).Error
}

// ToggleUserStatus flips is_active and returns the updated user.
func ToggleUserStatus(ctx context.Context, id int) (*User, error) {
	db := config.GetDB()
	var user User
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		next := !user.Active()
		user.IsActive = &next
		return tx.Model(&User{}).Where("id = ?", id).Update("is_active", next).Error
	})
	if err != nil {
		return nil, err
	}
	user.PrepareGive()
	return &user, nil
}

// DeleteUser removes a user with their memberships and attendance.
// Users that already have bills are kept for the ledger.
func DeleteUser(ctx context.Context, actorId int, id int) error {
	if actorId == id {
		return ErrCannotDeleteSelf
	}
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := utils.ValidateResourceId[User](ctx, tx, id); err != nil {
			return err
		}
		bills, err := utils.ResourceCountWhere[Bill](ctx, tx, "user_id = ?", id)
		if err != nil {
			return err
		}
		if bills > 0 {
			return ErrUserHasBills
		}
		attendanceIds := tx.Model(&Attendance{}).Select("id").Where("user_id = ?", id)
		if err := tx.Where("attendance_id IN (?)", attendanceIds).Delete(&AttendanceMenuItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&Attendance{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&UserMessGroup{}).Error; err != nil {
			return err
		}
		return tx.Delete(&User{}, id).Error
	})
}

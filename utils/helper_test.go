package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestIsGmailAddress(t *testing.T) {
	cases := map[string]bool{
		"alice@gmail.com":         true,
		" Alice.Khan@GMAIL.com ":  true,
		"alice_k99@gmail.com":     true,
		"alice@yahoo.com":         false,
		"@gmail.com":              false,
		"alice+mess@gmail.com":    false,
		"alice@evil@gmail.com":    false,
		"alice@gmail.com.example": false,
	}
	for in, want := range cases {
		if got := IsGmailAddress(in); got != want {
			t.Errorf("IsGmailAddress(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsStrongPassword(t *testing.T) {
	cases := map[string]bool{
		"Passw0rd": true,
		"aB3def":   true,
		"aB3de":    false,
		"password": false,
		"PASSW0RD": false,
		"Password": false,
	}
	for in, want := range cases {
		if got := IsStrongPassword(in); got != want {
			t.Errorf("IsStrongPassword(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestHashAndComparePassword(t *testing.T) {
	hashed, err := HashPassword("Passw0rd")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := ComparePassword(string(hashed), "Passw0rd"); err != nil {
		t.Fatalf("ComparePassword: %v", err)
	}
	if err := ComparePassword(string(hashed), "passw0rd"); err == nil {
		t.Fatalf("expected mismatch")
	}
}

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		"1,200":        "1200",
		"Rs 1,200.50":  "1200.5",
		"PKR -30":      "-30",
		"  rs.45.25  ": "45.25",
	}
	for in, want := range cases {
		got, err := ParseAmount(in)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", in, err)
		}
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Errorf("ParseAmount(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseAmount("Rs"); err == nil {
		t.Fatalf("expected error for an empty amount")
	}
}

func TestDates(t *testing.T) {
	d, err := ParseDate("2025-01-31")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Location() != time.UTC || d.Day() != 31 {
		t.Fatalf("unexpected date %v", d)
	}
	if _, err := ParseDate("31/01/2025"); err == nil {
		t.Fatalf("expected error for a non ISO date")
	}

	start, end := MonthRange(2024, 12)
	if !start.Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("MonthRange(2024, 12) = %v, %v", start, end)
	}

	local := time.Date(2025, 3, 9, 23, 30, 0, 0, time.FixedZone("PKT", 5*3600))
	if got := DateOnly(local); !got.Equal(time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("DateOnly = %v", got)
	}

	for _, c := range []struct{ month, year int }{{0, 2025}, {13, 2025}, {1, 1999}, {1, 2101}} {
		if err := ValidateMonthYear(c.month, c.year); !IsValidationError(err) {
			t.Errorf("ValidateMonthYear(%d, %d) = %v, want validation error", c.month, c.year, err)
		}
	}
	if err := ValidateMonthYear(2, 2025); err != nil {
		t.Fatalf("ValidateMonthYear(2, 2025): %v", err)
	}
}

type signup struct {
	Email    string `json:"email" binding:"required,email,gmail"`
	Password string `json:"password" binding:"required,strongpassword"`
	Phone    string `json:"phone" binding:"omitempty,phone"`
}

func TestValidateStructUsesJsonNames(t *testing.T) {
	err := ValidateStruct(&signup{Email: "alice@yahoo.com", Password: "weak", Phone: "12"})
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T %v", err, err)
	}
	if ve.Fields["email"] != "gmail" || ve.Fields["password"] != "strongpassword" || ve.Fields["phone"] != "phone" {
		t.Fatalf("unexpected fields %v", ve.Fields)
	}

	if err := ValidateStruct(&signup{Email: "alice@gmail.com", Password: "Passw0rd", Phone: "0300 1234567"}); err != nil {
		t.Fatalf("valid struct rejected: %v", err)
	}
}

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]int{3, 1, 3, 2, 1})
	if len(got) != 3 || got[0] != 3 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("UniqueSlice = %v", got)
	}
}

func TestJwtRoundTrip(t *testing.T) {
	t.Setenv("API_SECRET", "test-secret")
	token, jti, err := JwtGenerate(42, "alice@gmail.com", "Student")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	claims, err := JwtClaims(token)
	if err != nil {
		t.Fatalf("JwtClaims: %v", err)
	}
	if claims.ID != 42 || claims.Id != jti || claims.Subject != "alice@gmail.com" || claims.Role != "Student" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	t.Setenv("API_SECRET", "other-secret")
	if _, err := JwtClaims(token); err == nil {
		t.Fatalf("token signed with another secret must not validate")
	}
}

func TestCheckTokenSecret(t *testing.T) {
	cases := []struct {
		env, secret string
		wantErr     bool
	}{
		{"production", "", true},
		{"production", "s3cret", false},
		{"development", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		t.Setenv("GO_ENV", c.env)
		t.Setenv("API_SECRET", c.secret)
		if err := CheckTokenSecret(); (err != nil) != c.wantErr {
			t.Errorf("GO_ENV=%q API_SECRET=%q: err = %v", c.env, c.secret, err)
		}
	}
}

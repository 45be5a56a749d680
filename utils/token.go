package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

type JwtCustomClaim struct {
	ID   int    `json:"id"`
	Role string `json:"role"`
	jwt.StandardClaims
}

var ErrMissingTokenSecret = errors.New("API_SECRET must be set when GO_ENV=production")

// CheckTokenSecret fails in production when tokens would be signed with the
// built-in development key.
func CheckTokenSecret() error {
	if os.Getenv("GO_ENV") == "production" && os.Getenv("API_SECRET") == "" {
		return ErrMissingTokenSecret
	}
	return nil
}

func jwtSecret() []byte {
	secret := os.Getenv("API_SECRET")
	if secret == "" {
		return []byte("mess-backend-dev-secret")
	}
	return []byte(secret)
}

// GetTokenLifespan reads TOKEN_HOUR_LIFESPAN, defaulting to 24 hours.
func GetTokenLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// JwtGenerate signs a token for the user and returns it along with its id.
func JwtGenerate(userID int, username string, role string) (string, string, error) {
	now := time.Now()
	jti := uuid.NewString()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		ID:   userID,
		Role: role,
		StandardClaims: jwt.StandardClaims{
			Id:        jti,
			Subject:   username,
			ExpiresAt: now.Add(GetTokenLifespan()).Unix(),
			IssuedAt:  now.Unix(),
		},
	})

	token, err := t.SignedString(jwtSecret())
	if err != nil {
		return "", "", err
	}
	return token, jti, nil
}

func JwtValidate(token string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return jwtSecret(), nil
	})
}

// JwtClaims validates token and returns its claims.
func JwtClaims(token string) (*JwtCustomClaim, error) {
	parsed, err := JwtValidate(token)
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

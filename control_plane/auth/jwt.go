package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Role gates API access: drivers get USER, operators get ADMIN.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Claims carries the authenticated identity inside the token.
type Claims struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	jwt.RegisteredClaims
}

const (
	issuer   = "pileflow"
	tokenTTL = 24 * time.Hour
)

var jwtSecret []byte

func init() {
	secret := os.Getenv("JWT_SECRET")
	if len(secret) < 32 {
		if secret == "" {
			fmt.Println("WARNING: JWT_SECRET not set. Using insecure default for dev mode ONLY.")
			jwtSecret = []byte("insecure_default_secret_for_dev_mode_only_32bytes")
			return
		}
		panic("JWT_SECRET must be at least 32 characters long")
	}
	jwtSecret = []byte(secret)
}

// GenerateToken issues a signed token for the given user.
func GenerateToken(username string, role Role) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
}

// ValidateToken parses and verifies a token string.
func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Issuer != issuer {
		return nil, errors.New("invalid issuer")
	}
	return claims, nil
}

package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type UserRole string

const (
	RoleMerchantOwner UserRole = "MERCHANT_OWNER"
	RoleMerchantStaff UserRole = "MERCHANT_STAFF"
	RoleKitchen       UserRole = "KITCHEN"
	RoleService       UserRole = "SERVICE"
)

type Claims struct {
	StaffID     string   `json:"staffId"`
	Role        UserRole `json:"role"`
	Name        *string  `json:"name,omitempty"`
	MerchantID  *string  `json:"merchantId,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// IsStaff reports whether the role may operate the order queue.
func (c *Claims) IsStaff() bool {
	switch c.Role {
	case RoleMerchantOwner, RoleMerchantStaff, RoleKitchen:
		return true
	default:
		return false
	}
}

func ParseBearerToken(authHeader string) string {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func VerifyAccessToken(tokenString string, secret string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("token required")
	}

	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, errors.New("token expired")
	}
	if strings.TrimSpace(claims.StaffID) == "" {
		return nil, errors.New("staff id missing")
	}
	return claims, nil
}

// SignServiceToken issues the short-lived HS256 token this service presents to the order API.
func SignServiceToken(secret string, subject string, ttl time.Duration, now time.Time) (string, time.Time, error) {
	if strings.TrimSpace(secret) == "" {
		return "", time.Time{}, errors.New("service jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	expires := now.Add(ttl)
	claims := &Claims{
		StaffID: subject,
		Role:    RoleService,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

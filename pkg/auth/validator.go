package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Gabiro3/blimp2/pkg/types"
)

const (
	issuer          = "blimp"
	defaultTokenTTL = 24 * time.Hour
)

// TokenValidator turns bearer tokens into identities.
type TokenValidator interface {
	ValidateAdminToken(token string) bool
	ValidateToken(ctx context.Context, token string) (*types.AuthInfo, error)
}

// Claims contains the JWT claims of a user token
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTValidator accepts the static admin token and HS256 user tokens whose
// subject is the user id.
type JWTValidator struct {
	secret     []byte
	adminToken string
	now        func() time.Time
}

// NewJWTValidator creates a validator. An empty secret gets a random one, so
// tokens do not survive restarts.
func NewJWTValidator(secret, adminToken string) *JWTValidator {
	if secret == "" {
		b := make([]byte, 32)
		_, _ = rand.Read(b)
		secret = hex.EncodeToString(b)
	}
	return &JWTValidator{secret: []byte(secret), adminToken: adminToken, now: time.Now}
}

func (v *JWTValidator) ValidateAdminToken(token string) bool {
	return v.adminToken != "" && token == v.adminToken
}

// Issue signs a user token valid for ttl.
func (v *JWTValidator) Issue(userID, email string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	now := v.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func (v *JWTValidator) ValidateToken(ctx context.Context, tokenStr string) (*types.AuthInfo, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return &types.AuthInfo{TokenType: types.TokenTypeUser, UserID: claims.Subject, Email: claims.Email}, nil
}

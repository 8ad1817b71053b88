package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"unihub/config"
	"unihub/models"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID   uint   `json:"_id"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"fullName,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair holds a freshly issued access and refresh token
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// GenerateTokens signs a new access token and a new refresh token for user.
// Every refresh token carries a unique ID so reissuing always changes it.
func GenerateTokens(user *models.User) (*TokenPair, error) {
	now := time.Now()

	accessClaims := &Claims{
		UserID:   user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(config.AppConfig.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).
		SignedString([]byte(config.AppConfig.AccessTokenSecret))
	if err != nil {
		return nil, err
	}

	refreshClaims := &Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(config.AppConfig.RefreshTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).
		SignedString([]byte(config.AppConfig.RefreshTokenSecret))
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func ParseAccessToken(tokenString string) (*Claims, error) {
	return parseToken(tokenString, config.AppConfig.AccessTokenSecret)
}

func ParseRefreshToken(tokenString string) (*Claims, error) {
	return parseToken(tokenString, config.AppConfig.RefreshTokenSecret)
}

func parseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.UserID != 0 {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

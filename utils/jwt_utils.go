package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cart-service/models"
)

const viewStateTTL = 24 * time.Hour

var ErrInvalidViewState = errors.New("invalid view state token")

type viewStateClaims struct {
	models.ViewState
	jwt.RegisteredClaims
}

// SignViewState 将界面状态序列化为签名令牌，客户端在下次请求时带回
func SignViewState(state models.ViewState, secret string, now time.Time) (string, error) {
	claims := viewStateClaims{
		ViewState: state,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(viewStateTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func ParseViewState(tokenString, secret string) (models.ViewState, error) {
	var claims viewStateClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return models.ViewState{}, fmt.Errorf("%w: %v", ErrInvalidViewState, err)
	}
	if !token.Valid {
		return models.ViewState{}, ErrInvalidViewState
	}
	return Normalize(claims.ViewState), nil
}

// Normalize 将非法字段恢复为默认值
func Normalize(state models.ViewState) models.ViewState {
	def := models.DefaultViewState()
	if !state.SortField.Valid() {
		state.SortField = def.SortField
	}
	if !state.SortOrder.Valid() {
		state.SortOrder = def.SortOrder
	}
	if state.Page < 1 {
		state.Page = def.Page
	}
	if state.Expanded == nil {
		state.Expanded = []int{}
	}
	return state
}

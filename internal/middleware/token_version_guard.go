package middleware

import (
	"context"
	"net/http"

	"github.com/Moisinho/odym-ecommerce-sub000/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// UserFinder is the part of the user repository the guard needs.
type UserFinder interface {
	FindByID(ctx context.Context, userID int64) (*model.User, error)
}

// JWTのtvとDBのtoken_versionの一致するか確認。
func TokenVersionGuard(userRepo UserFinder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//AuthJWTが入れたuser_id を取得する
			rawUserID := c.Get(CtxUserIDKey)
			userID, ok := rawUserID.(int64)
			if !ok || userID <= 0 {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//AuthJWTが入れたtoken_version(tv)を取得する
			rawTV := c.Get(CtxTokenVersionKey)
			tv, ok := rawTV.(int)
			if !ok || tv < 0 {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//DBから最新のuserを取得する
			user, err := userRepo.FindByID(c.Request().Context(), userID)
			if err != nil || user == nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			if !user.IsActive {
				return c.JSON(http.StatusForbidden, errorJSON("forbidden"))
			}

			//token_version が一致しなければ強制ログアウト扱い（401）
			if user.TokenVersion != tv {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			return next(c)
		}
	}
}

// OptionalTokenVersionGuard は OptionalAuthJWT の後ろに置く。
// ゲストはそのまま通し、トークンがあるときだけ TokenVersionGuard と同じ確認をする。
func OptionalTokenVersionGuard(userRepo UserFinder) echo.MiddlewareFunc {
	guard := TokenVersionGuard(userRepo)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		guarded := guard(next)
		return func(c echo.Context) error {
			if c.Get(CtxUserIDKey) == nil {
				return next(c)
			}
			return guarded(c)
		}
	}
}

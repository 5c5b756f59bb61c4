package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	//400 入力不足
	ErrValidation = errors.New("validation error")
	//401 認証失敗
	ErrUnauthorized = errors.New("unauthorized")
	//403 権限
	ErrForbidden = errors.New("forbidden")
	//404
	ErrNotFound = errors.New("not found")
	//競合
	ErrConflict = errors.New("conflict")
	//500
	ErrInternal = errors.New("internal error")
)

// HTTPError is returned by usecases; handlers turn it into {"error": Message, "details": Details}.
// Err is the internal cause and is only logged.
type HTTPError struct {
	Status  int
	Message string
	Details interface{}
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d: %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// StockIssue is one cart line that asks for more than is on hand.
type StockIssue struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Requested int64  `json:"requested"`
	Available int64  `json:"available"`
}

func ValidationError(message string) error {
	return &HTTPError{Status: http.StatusBadRequest, Message: message}
}

func StockError(issues []StockIssue) error {
	return &HTTPError{
		Status:  http.StatusBadRequest,
		Message: "insufficient stock",
		Details: issues,
	}
}

// SignatureError carries the verification message as is.
func SignatureError(err error) error {
	return &HTTPError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
}

func NotFoundError(message string) error {
	return &HTTPError{Status: http.StatusNotFound, Message: message}
}

func OrderCreationError(err error) error {
	return &HTTPError{Status: http.StatusInternalServerError, Message: "order creation failed", Err: err}
}

func ExternalProviderError(err error) error {
	return &HTTPError{Status: http.StatusBadGateway, Message: "payment provider error", Err: err}
}

// IsStockError reports whether err is an insufficient-stock rejection.
func IsStockError(err error) bool {
	he, ok := AsHTTPError(err)
	if !ok {
		return false
	}
	_, ok = he.Details.([]StockIssue)
	return ok
}

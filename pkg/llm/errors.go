package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType представляет тип ошибки при работе с API провайдера.
type ErrorType int

const (
	ErrUnknown ErrorType = iota
	ErrAuthFailed
	ErrTimeout
	ErrNetwork
	ErrRateLimit
	ErrServer
	ErrBadRequest
)

// String возвращает строковое представление типа ошибки.
func (e ErrorType) String() string {
	switch e {
	case ErrAuthFailed:
		return "authentication_failed"
	case ErrTimeout:
		return "timeout"
	case ErrNetwork:
		return "network_error"
	case ErrRateLimit:
		return "rate_limit"
	case ErrServer:
		return "server_error"
	case ErrBadRequest:
		return "bad_request"
	default:
		return "unknown"
	}
}

// Transient сообщает, имеет ли смысл повторять запрос.
// Ошибки авторизации и невалидного запроса не исправятся повтором.
func (e ErrorType) Transient() bool {
	return e != ErrAuthFailed && e != ErrBadRequest
}

// APIError - ошибка провайдера с HTTP статусом.
// Адаптеры оборачивают в неё ошибки SDK, чтобы классификация не зависела от SDK.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("provider error: %s", e.Message)
	}
	return fmt.Sprintf("provider error: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ClassifyError классифицирует ошибку по типу для лучшей диагностики.
//
// Сначала смотрит на HTTP статус APIError, затем на контекст,
// и только потом на текст ошибки:
//   - ErrAuthFailed: 401, 403, unauthorized
//   - ErrRateLimit: 429, Too Many Requests
//   - ErrTimeout: timeout, deadline exceeded
//   - ErrNetwork: connection refused, no such host
//   - ErrServer: 5xx
//   - ErrBadRequest: прочие 4xx
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrUnknown
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		switch code := apiErr.StatusCode; {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return ErrAuthFailed
		case code == http.StatusTooManyRequests:
			return ErrRateLimit
		case code == http.StatusRequestTimeout:
			return ErrTimeout
		case code >= 500:
			return ErrServer
		case code >= 400:
			return ErrBadRequest
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	errMsg := err.Error()
	errMsgLower := strings.ToLower(errMsg)

	switch {
	case strings.Contains(errMsg, "401") || strings.Contains(errMsgLower, "unauthorized"):
		return ErrAuthFailed
	case strings.Contains(errMsg, "429") || strings.Contains(errMsgLower, "too many requests"):
		return ErrRateLimit
	case strings.Contains(errMsgLower, "timeout") || strings.Contains(errMsgLower, "deadline exceeded"):
		return ErrTimeout
	case strings.Contains(errMsgLower, "connection refused") ||
		strings.Contains(errMsgLower, "no such host") ||
		strings.Contains(errMsgLower, "connection reset"):
		return ErrNetwork
	}

	return ErrUnknown
}

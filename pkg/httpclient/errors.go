package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/akaushop/storefront/pkg/errors"
)

// detailBody is the error body the shop backend returns: detail is either
// a plain string or a structured value (a list of field errors on 422).
type detailBody struct {
	Detail json.RawMessage `json:"detail"`
}

// envelopeBody is the error envelope written by pkg/httputil.
type envelopeBody struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type fieldError struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// ParseResponseError reads the body of a non-2xx response and translates it
// into an *apperrors.AppError carrying the upstream 4xx status (5xx collapse
// to 503) and the server-provided detail as Message. Bodies without a recognised shape
// yield the raw text, or "HTTP <status>" when the body is empty.
//
// The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperrors.ServiceUnavailable(
			fmt.Sprintf("%s returned status %d", serviceName, resp.StatusCode),
			fmt.Errorf("read body: %w", err),
		)
	}

	code, message := extractMessage(bodyBytes)
	if message == "" {
		message = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return mapStatus(resp.StatusCode, code, message)
}

func extractMessage(body []byte) (code, message string) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", ""
	}

	var detail detailBody
	if json.Unmarshal(trimmed, &detail) == nil && len(detail.Detail) > 0 && string(detail.Detail) != "null" {
		return "", detailMessage(detail.Detail)
	}

	var envelope envelopeBody
	if json.Unmarshal(trimmed, &envelope) == nil && envelope.Error != nil {
		return envelope.Error.Code, envelope.Error.Message
	}

	return "", string(trimmed)
}

func detailMessage(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}

	var fields []fieldError
	if json.Unmarshal(raw, &fields) == nil && len(fields) > 0 {
		msgs := make([]string, 0, len(fields))
		for _, f := range fields {
			if f.Msg == "" {
				continue
			}
			if n := len(f.Loc); n > 0 {
				msgs = append(msgs, fmt.Sprintf("%v: %s", f.Loc[n-1], f.Msg))
			} else {
				msgs = append(msgs, f.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}

	return string(raw)
}

func mapStatus(status int, code, message string) error {
	var e *apperrors.AppError
	switch {
	case status == http.StatusBadRequest:
		e = apperrors.InvalidInput(message)
	case status == http.StatusUnauthorized:
		e = apperrors.Unauthorized(message)
	case status == http.StatusForbidden:
		e = apperrors.Forbidden(message)
	case status == http.StatusNotFound:
		e = &apperrors.AppError{Code: "NOT_FOUND", Message: message, Err: apperrors.ErrNotFound}
	case status == http.StatusConflict:
		e = apperrors.Conflict("", message)
	case status == http.StatusUnprocessableEntity:
		e = apperrors.ValidationFailed("", message)
	case status == http.StatusTooManyRequests:
		e = apperrors.TooManyRequests(message)
	case status >= 500:
		e = apperrors.ServiceUnavailable(message, nil)
	default:
		e = &apperrors.AppError{Code: "UPSTREAM_ERROR", Message: message}
	}
	if status < 500 {
		e.Status = status
	}
	if code != "" {
		e.Code = code
	}
	return e
}

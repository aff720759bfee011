package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/akaushop/storefront/pkg/errors"
)

// FailureKind classifies why an order submission did not succeed.
type FailureKind string

const (
	FailureValidation       FailureKind = "validation"
	FailureStockConflict    FailureKind = "stock_conflict"
	FailureShippingConflict FailureKind = "shipping_conflict"
	FailureAuth             FailureKind = "auth"
	FailureTransport        FailureKind = "transport"
	FailureRejected         FailureKind = "rejected"
	FailureOutcomeUnknown   FailureKind = "outcome_unknown"
)

// ErrOutcomeUnknown marks a submission the backend accepted but whose reply
// could not be read. The order may exist.
var ErrOutcomeUnknown = errors.New("order outcome unknown")

// stockConflictPattern matches the backend's insufficient stock detail.
var stockConflictPattern = regexp.MustCompile(`product_id=(\d+),\s*stock=(-?\d+),\s*requested=(\d+)`)

const transportMessage = "The shop is temporarily unavailable. Please try again later."

// SubmitFailure is a classified submission failure with a message the buyer
// can act on.
type SubmitFailure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	Field   string      `json:"field,omitempty"`

	// Set for stock conflicts.
	ProductID int64 `json:"product_id,omitempty"`
	Stock     int   `json:"stock,omitempty"`
	Requested int   `json:"requested,omitempty"`

	Err error `json:"-"`
}

func (f *SubmitFailure) Error() string {
	return f.Message
}

func (f *SubmitFailure) Unwrap() error {
	return f.Err
}

// Retryable reports whether resubmitting the same draft may succeed without
// the buyer changing anything.
func (f *SubmitFailure) Retryable() bool {
	return f.Kind == FailureTransport
}

// ParseStockConflict extracts product, stock and requested quantity from a
// backend detail message.
func ParseStockConflict(detail string) (productID int64, stock, requested int, ok bool) {
	m := stockConflictPattern.FindStringSubmatch(detail)
	if m == nil {
		return 0, 0, 0, false
	}
	id, err1 := strconv.ParseInt(m[1], 10, 64)
	st, err2 := strconv.Atoi(m[2])
	rq, err3 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, false
	}
	return id, st, rq, true
}

// ClassifySubmitError turns an order submission error into a SubmitFailure.
// nameOf resolves a product id to a display name and may return "".
func ClassifySubmitError(err error, nameOf func(int64) string) *SubmitFailure {
	var already *SubmitFailure
	if errors.As(err, &already) {
		return already
	}
	if errors.Is(err, ErrOutcomeUnknown) {
		return &SubmitFailure{
			Kind:    FailureOutcomeUnknown,
			Message: "Your order may have been placed, but the shop's reply could not be read. Check your order history before submitting again.",
			Err:     err,
		}
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return &SubmitFailure{Kind: FailureValidation, Message: verr.Message, Field: verr.Field, Err: err}
	}

	if errors.Is(err, apperrors.ErrServiceUnavail) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return &SubmitFailure{Kind: FailureTransport, Message: transportMessage, Err: err}
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return &SubmitFailure{Kind: FailureTransport, Message: transportMessage, Err: err}
	}

	status := apperrors.HTTPStatus(err)
	detail := strings.TrimSpace(appErr.Message)

	if id, stock, requested, ok := ParseStockConflict(detail); ok {
		return stockConflict(id, stock, requested, nameOf, err)
	}

	switch {
	case status == http.StatusUnauthorized:
		return &SubmitFailure{Kind: FailureAuth, Message: "Your session has expired. Please sign in again.", Err: err}
	case status >= http.StatusInternalServerError:
		return &SubmitFailure{Kind: FailureTransport, Message: transportMessage, Err: err}
	case status == http.StatusBadRequest && mentionsShippingMethod(detail):
		return &SubmitFailure{
			Kind:    FailureShippingConflict,
			Field:   "shipping_method",
			Message: "The selected shipping method is not available for every item. Please choose another method or adjust your cart.",
			Err:     err,
		}
	}

	if detail == "" {
		detail = fmt.Sprintf("HTTP %d", status)
	}
	return &SubmitFailure{Kind: FailureRejected, Message: detail, Err: err}
}

func mentionsShippingMethod(detail string) bool {
	d := strings.ToLower(detail)
	return strings.Contains(d, "shipping_method") || strings.Contains(d, "shipping method")
}

func stockConflict(id int64, stock, requested int, nameOf func(int64) string, err error) *SubmitFailure {
	avail := stock
	if avail < 0 {
		avail = 0
	}
	subject := fmt.Sprintf("Product %d", id)
	if nameOf != nil {
		if name := nameOf(id); name != "" {
			subject = fmt.Sprintf("%q (product %d)", name, id)
		}
	}
	msg := fmt.Sprintf("%s has only %d in stock but %d were requested. Reduce the quantity to %d or fewer.",
		subject, avail, requested, avail)
	return &SubmitFailure{
		Kind:      FailureStockConflict,
		Message:   msg,
		Field:     "items",
		ProductID: id,
		Stock:     avail,
		Requested: requested,
		Err:       err,
	}
}

package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a business-rule or validation failure. Every kind maps to
// a specific, actionable message for the caller; handlers translate kinds to
// HTTP status codes.
type Kind string

const (
	KindValidation             Kind = "VALIDATION_ERROR"
	KindNotFound               Kind = "NOT_FOUND"
	KindSoldOut                Kind = "SOLD_OUT"
	KindPaymentDeclined        Kind = "PAYMENT_DECLINED"
	KindNotTransferable        Kind = "NOT_TRANSFERABLE"
	KindTransferExpired        Kind = "TRANSFER_EXPIRED"
	KindAlreadyAccepted        Kind = "ALREADY_ACCEPTED"
	KindPriceCapExceeded       Kind = "PRICE_CAP_EXCEEDED"
	KindConcurrentModification Kind = "CONCURRENT_MODIFICATION"
)

// Error is a business error carrying its kind. All rule violations are
// detected before any mutation, so returning one of these guarantees no
// partial state was persisted.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

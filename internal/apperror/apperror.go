package apperror

import "errors"

// Kind describes a stable error category that can be mapped to HTTP status codes.
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindUnprocessable Kind = "unprocessable"
)

// Code identifies a pricing failure precisely enough for callers to react to it.
type Code string

const (
	CodeAddressUnresolved    Code = "address_unresolved"
	CodeNoDeliveryZone       Code = "no_delivery_zone"
	CodeOutOfZone            Code = "out_of_zone"
	CodeInvalidLineItem      Code = "invalid_line_item"
	CodePromotionUnavailable Code = "promotion_unavailable"
	CodeConcurrencyConflict  Code = "concurrency_conflict"
)

// Error is a typed error with a stable Kind and a human-readable message.
// Msg should be safe to return to clients for every kind except internal errors.
type Error struct {
	Kind Kind
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return string(e.Code)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Coded builds an error that carries both a kind and a pricing code.
func Coded(kind Kind, code Code, msg string, err error) error {
	return &Error{Kind: kind, Code: code, Msg: msg, Err: err}
}

func NotFound(msg string, err error) error      { return New(KindNotFound, msg, err) }
func Validation(msg string, err error) error    { return New(KindValidation, msg, err) }
func Conflict(msg string, err error) error      { return New(KindConflict, msg, err) }
func Unprocessable(msg string, err error) error { return New(KindUnprocessable, msg, err) }

func AddressUnresolved(msg string) error {
	return Coded(KindValidation, CodeAddressUnresolved, msg, nil)
}

func NoDeliveryZone(msg string) error {
	return Coded(KindUnprocessable, CodeNoDeliveryZone, msg, nil)
}

func OutOfZone(msg string, err error) error {
	return Coded(KindUnprocessable, CodeOutOfZone, msg, err)
}

func InvalidLineItem(msg string) error {
	return Coded(KindValidation, CodeInvalidLineItem, msg, nil)
}

func PromotionUnavailable(msg string) error {
	return Coded(KindUnprocessable, CodePromotionUnavailable, msg, nil)
}

func ConcurrencyConflict(msg string, err error) error {
	return Coded(KindConflict, CodeConcurrencyConflict, msg, err)
}

func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the first *Error in the chain that has one.
func CodeOf(err error) Code {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return ""
		}
		if e.Code != "" {
			return e.Code
		}
		err = e.Err
	}
	return ""
}

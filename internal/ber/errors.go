package ber

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedEOF is returned when the data ends inside an element.
	ErrUnexpectedEOF = errors.New("ber: unexpected end of data")
	// ErrInvalidLength is returned for malformed or oversized lengths.
	ErrInvalidLength = errors.New("ber: invalid length encoding")
	// ErrIndefiniteLength is returned for the indefinite length form, which LDAP forbids.
	ErrIndefiniteLength = errors.New("ber: indefinite length not supported")
	// ErrInvalidBoolean is returned when a BOOLEAN is not exactly one octet.
	ErrInvalidBoolean = errors.New("ber: invalid boolean encoding")
	// ErrInvalidInteger is returned for empty or oversized INTEGER content.
	ErrInvalidInteger = errors.New("ber: invalid integer encoding")
	// ErrTagMismatch is returned when the next element is not the expected one.
	ErrTagMismatch = errors.New("ber: tag mismatch")
	// ErrPacketTooLarge is returned by ReadPacket when an element exceeds the limit.
	ErrPacketTooLarge = errors.New("ber: packet exceeds size limit")
	// ErrTagTooLong is returned by ReadPacket when a long form tag number
	// does not end within maxTagNumberOctets octets.
	ErrTagTooLong = errors.New("ber: tag number too long")
	// ErrUnbalancedEnd is returned when End is called with a bad position.
	ErrUnbalancedEnd = errors.New("ber: end without matching begin")
)

// DecodeError records where in the input a decoding failure happened.
type DecodeError struct {
	Offset  int
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ber: decode error at offset %d: %s: %v", e.Offset, e.Message, e.Err)
	}
	return fmt.Sprintf("ber: decode error at offset %d: %s", e.Offset, e.Message)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func newDecodeError(offset int, message string, err error) *DecodeError {
	return &DecodeError{Offset: offset, Message: message, Err: err}
}

// TagMismatchError describes an unexpected element.
type TagMismatchError struct {
	Offset   int
	Expected Tag
	Actual   Tag
}

func (e *TagMismatchError) Error() string {
	return fmt.Sprintf("ber: tag mismatch at offset %d: expected class=%#x number=%d, got class=%#x number=%d",
		e.Offset, e.Expected.Class, e.Expected.Number, e.Actual.Class, e.Actual.Number)
}

// Is lets errors.Is(err, ErrTagMismatch) match.
func (e *TagMismatchError) Is(target error) bool {
	return target == ErrTagMismatch
}

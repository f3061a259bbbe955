package ldap

import (
	"errors"
	"fmt"
)

// Protocol operation tags (APPLICATION class), RFC 4511 Section 4.2.
const (
	ApplicationBindRequest           = 0
	ApplicationBindResponse          = 1
	ApplicationUnbindRequest         = 2
	ApplicationSearchRequest         = 3
	ApplicationSearchResultEntry     = 4
	ApplicationSearchResultDone      = 5
	ApplicationAbandonRequest        = 16
	ApplicationSearchResultReference = 19
	ApplicationExtendedResponse      = 24
	ApplicationIntermediateResponse  = 25
)

// OperationType names a protocol operation tag.
type OperationType int

func (o OperationType) String() string {
	switch o {
	case ApplicationBindRequest:
		return "BindRequest"
	case ApplicationBindResponse:
		return "BindResponse"
	case ApplicationUnbindRequest:
		return "UnbindRequest"
	case ApplicationSearchRequest:
		return "SearchRequest"
	case ApplicationSearchResultEntry:
		return "SearchResultEntry"
	case ApplicationSearchResultDone:
		return "SearchResultDone"
	case ApplicationAbandonRequest:
		return "AbandonRequest"
	case ApplicationSearchResultReference:
		return "SearchResultReference"
	case ApplicationExtendedResponse:
		return "ExtendedResponse"
	case ApplicationIntermediateResponse:
		return "IntermediateResponse"
	default:
		return fmt.Sprintf("Unknown(%d)", int(o))
	}
}

// ContextTagControls is the [0] tag of the Controls field.
const ContextTagControls = 0

// Message ID bounds, RFC 4511 Section 4.1.1.1.
const (
	MinMessageID = 0
	MaxMessageID = 2147483647
)

// ResultCode is an LDAP result code, RFC 4511 Section 4.1.9.
type ResultCode int

const (
	ResultSuccess                      ResultCode = 0
	ResultOperationsError              ResultCode = 1
	ResultProtocolError                ResultCode = 2
	ResultTimeLimitExceeded            ResultCode = 3
	ResultSizeLimitExceeded            ResultCode = 4
	ResultAuthMethodNotSupported       ResultCode = 7
	ResultStrongerAuthRequired         ResultCode = 8
	ResultReferral                     ResultCode = 10
	ResultAdminLimitExceeded           ResultCode = 11
	ResultUnavailableCriticalExtension ResultCode = 12
	ResultConfidentialityRequired      ResultCode = 13
	ResultNoSuchAttribute              ResultCode = 16
	ResultUndefinedAttributeType       ResultCode = 17
	ResultNoSuchObject                 ResultCode = 32
	ResultInvalidDNSyntax              ResultCode = 34
	ResultInappropriateAuthentication  ResultCode = 48
	ResultInvalidCredentials           ResultCode = 49
	ResultInsufficientAccessRights     ResultCode = 50
	ResultBusy                         ResultCode = 51
	ResultUnavailable                  ResultCode = 52
	ResultUnwillingToPerform           ResultCode = 53
	ResultOther                        ResultCode = 80
)

var resultCodeNames = map[ResultCode]string{
	ResultSuccess:                      "Success",
	ResultOperationsError:              "OperationsError",
	ResultProtocolError:                "ProtocolError",
	ResultTimeLimitExceeded:            "TimeLimitExceeded",
	ResultSizeLimitExceeded:            "SizeLimitExceeded",
	ResultAuthMethodNotSupported:       "AuthMethodNotSupported",
	ResultStrongerAuthRequired:         "StrongerAuthRequired",
	ResultReferral:                     "Referral",
	ResultAdminLimitExceeded:           "AdminLimitExceeded",
	ResultUnavailableCriticalExtension: "UnavailableCriticalExtension",
	ResultConfidentialityRequired:      "ConfidentialityRequired",
	ResultNoSuchAttribute:              "NoSuchAttribute",
	ResultUndefinedAttributeType:       "UndefinedAttributeType",
	ResultNoSuchObject:                 "NoSuchObject",
	ResultInvalidDNSyntax:              "InvalidDNSyntax",
	ResultInappropriateAuthentication:  "InappropriateAuthentication",
	ResultInvalidCredentials:           "InvalidCredentials",
	ResultInsufficientAccessRights:     "InsufficientAccessRights",
	ResultBusy:                         "Busy",
	ResultUnavailable:                  "Unavailable",
	ResultUnwillingToPerform:           "UnwillingToPerform",
	ResultOther:                        "Other",
}

func (r ResultCode) String() string {
	if name, ok := resultCodeNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", int(r))
}

// Control is an LDAP control, RFC 4511 Section 4.1.11.
type Control struct {
	OID         string
	Criticality bool
	Value       []byte
}

// RawOperation is a protocol operation whose content has not been decoded.
type RawOperation struct {
	// Tag is the APPLICATION tag number.
	Tag int
	// Constructed is false for the few operations encoded as primitives.
	Constructed bool
	// Data is the element content without tag and length.
	Data []byte
}

// Message is the LDAPMessage envelope.
type Message struct {
	ID        int
	Operation *RawOperation
	Controls  []Control
}

// OperationType returns the type of the carried operation, or -1 if none.
func (m *Message) OperationType() OperationType {
	if m.Operation == nil {
		return -1
	}
	return OperationType(m.Operation.Tag)
}

// Envelope errors.
var (
	ErrEmptyMessage     = errors.New("ldap: empty message data")
	ErrInvalidMessageID = errors.New("ldap: message ID out of valid range (0 to 2147483647)")
	ErrMissingOperation = errors.New("ldap: missing protocol operation")
	ErrInvalidOperation = errors.New("ldap: protocol operation must have APPLICATION tag class")
	ErrUnexpectedOp     = errors.New("ldap: unexpected protocol operation")
)

// ParseError records where a message failed to parse.
type ParseError struct {
	Offset  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ldap: parse error at offset %d: %s: %v", e.Offset, e.Message, e.Err)
	}
	return fmt.Sprintf("ldap: parse error at offset %d: %s", e.Offset, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a ParseError.
func NewParseError(offset int, message string, err error) *ParseError {
	return &ParseError{Offset: offset, Message: message, Err: err}
}

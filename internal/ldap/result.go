package ldap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KilimcininKorOglu/adnotify/internal/ber"
)

// ContextTagReferral is the referral field [3] of LDAPResult.
const ContextTagReferral = 3

// LDAPResult is the common result structure.
//
//	LDAPResult ::= SEQUENCE {
//	    resultCode         ENUMERATED { ... },
//	    matchedDN          LDAPDN,
//	    diagnosticMessage  LDAPString,
//	    referral           [3] Referral OPTIONAL
//	}
type LDAPResult struct {
	ResultCode        ResultCode
	MatchedDN         string
	DiagnosticMessage string
	Referral          []string
}

// Err returns nil for success and a *ResultError otherwise.
func (r *LDAPResult) Err() error {
	if r == nil || r.ResultCode == ResultSuccess {
		return nil
	}
	return &ResultError{
		Code:      r.ResultCode,
		MatchedDN: r.MatchedDN,
		Message:   r.DiagnosticMessage,
	}
}

func parseLDAPResult(dec *ber.Decoder) (*LDAPResult, error) {
	code, err := dec.ReadEnumerated()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read resultCode", err)
	}
	res := &LDAPResult{ResultCode: ResultCode(code)}

	if res.MatchedDN, err = dec.ReadString(); err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read matchedDN", err)
	}
	if res.DiagnosticMessage, err = dec.ReadString(); err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read diagnosticMessage", err)
	}

	if dec.IsContextTag(ContextTagReferral) {
		refs, err := dec.ReadContextContents(ContextTagReferral)
		if err != nil {
			return nil, NewParseError(dec.Offset(), "failed to read referral", err)
		}
		for refs.Remaining() > 0 {
			uri, err := refs.ReadString()
			if err != nil {
				return nil, NewParseError(dec.Offset(), "failed to read referral URI", err)
			}
			res.Referral = append(res.Referral, uri)
		}
	}
	return res, nil
}

// ParseSearchResultDone decodes SearchResultDone ::= [APPLICATION 5] LDAPResult.
func ParseSearchResultDone(op *RawOperation) (*LDAPResult, error) {
	if op == nil || op.Tag != ApplicationSearchResultDone {
		return nil, ErrUnexpectedOp
	}
	return parseLDAPResult(ber.NewDecoder(op.Data))
}

// ResultError is a non-success LDAP result surfaced as a Go error.
type ResultError struct {
	Code      ResultCode
	MatchedDN string
	Message   string
}

func (e *ResultError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ldap: %s (%d): %s", e.Code, int(e.Code), e.Message)
	}
	return fmt.Sprintf("ldap: %s (%d)", e.Code, int(e.Code))
}

// IsResultCode reports whether err is a *ResultError with the given code.
func IsResultCode(err error, code ResultCode) bool {
	var re *ResultError
	return errors.As(err, &re) && re.Code == code
}

// PartialAttribute is an attribute description with its values.
type PartialAttribute struct {
	Type   string
	Values [][]byte
}

// SearchResultEntry is one entry returned by a search.
//
//	SearchResultEntry ::= [APPLICATION 4] SEQUENCE {
//	    objectName      LDAPDN,
//	    attributes      PartialAttributeList
//	}
type SearchResultEntry struct {
	ObjectName string
	Attributes []PartialAttribute
	// Controls are the controls carried by the enclosing message, such as
	// an Entry Change Notification.
	Controls []Control
}

// Values returns the values of the named attribute, matched
// case-insensitively, or nil.
func (e *SearchResultEntry) Values(name string) [][]byte {
	for _, attr := range e.Attributes {
		if strings.EqualFold(attr.Type, name) {
			return attr.Values
		}
	}
	return nil
}

// ParseSearchResultEntry decodes a SearchResultEntry.
func ParseSearchResultEntry(op *RawOperation) (*SearchResultEntry, error) {
	if op == nil || op.Tag != ApplicationSearchResultEntry {
		return nil, ErrUnexpectedOp
	}

	dec := ber.NewDecoder(op.Data)
	name, err := dec.ReadString()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read objectName", err)
	}
	entry := &SearchResultEntry{ObjectName: name}

	list, err := dec.ReadSequenceContents()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read attribute list", err)
	}
	for list.Remaining() > 0 {
		attrSeq, err := list.ReadSequenceContents()
		if err != nil {
			return nil, NewParseError(list.Offset(), "failed to read partial attribute", err)
		}
		attr := PartialAttribute{}
		if attr.Type, err = attrSeq.ReadString(); err != nil {
			return nil, NewParseError(list.Offset(), "failed to read attribute type", err)
		}
		vals, err := attrSeq.ReadSetContents()
		if err != nil {
			return nil, NewParseError(list.Offset(), "failed to read attribute values", err)
		}
		for vals.Remaining() > 0 {
			v, err := vals.ReadOctetString()
			if err != nil {
				return nil, NewParseError(list.Offset(), "failed to read attribute value", err)
			}
			attr.Values = append(attr.Values, v)
		}
		entry.Attributes = append(entry.Attributes, attr)
	}
	return entry, nil
}

// Operation encodes the entry as a protocol operation. Clients never send
// entries; this exists for test servers.
func (e *SearchResultEntry) Operation() (*RawOperation, error) {
	enc := ber.NewEncoder(128)
	if err := enc.WriteString(e.ObjectName); err != nil {
		return nil, err
	}
	list := enc.BeginSequence()
	for _, attr := range e.Attributes {
		seq := enc.BeginSequence()
		if err := enc.WriteString(attr.Type); err != nil {
			return nil, err
		}
		set := enc.BeginSet()
		for _, v := range attr.Values {
			if err := enc.WriteOctetString(v); err != nil {
				return nil, err
			}
		}
		if err := enc.End(set); err != nil {
			return nil, err
		}
		if err := enc.End(seq); err != nil {
			return nil, err
		}
	}
	if err := enc.End(list); err != nil {
		return nil, err
	}
	return &RawOperation{Tag: ApplicationSearchResultEntry, Constructed: true, Data: enc.Bytes()}, nil
}

// Operation encodes an LDAPResult under the given response tag, for
// test servers.
func (r *LDAPResult) Operation(tag int) (*RawOperation, error) {
	enc := ber.NewEncoder(64)
	if err := enc.WriteEnumerated(int64(r.ResultCode)); err != nil {
		return nil, err
	}
	if err := enc.WriteString(r.MatchedDN); err != nil {
		return nil, err
	}
	if err := enc.WriteString(r.DiagnosticMessage); err != nil {
		return nil, err
	}
	if len(r.Referral) > 0 {
		pos := enc.BeginContext(ContextTagReferral)
		for _, uri := range r.Referral {
			if err := enc.WriteString(uri); err != nil {
				return nil, err
			}
		}
		if err := enc.End(pos); err != nil {
			return nil, err
		}
	}
	return &RawOperation{Tag: tag, Constructed: true, Data: enc.Bytes()}, nil
}

// ParseSearchResultReference decodes the continuation URIs of a
// SearchResultReference ::= [APPLICATION 19] SEQUENCE OF URI.
func ParseSearchResultReference(op *RawOperation) ([]string, error) {
	if op == nil || op.Tag != ApplicationSearchResultReference {
		return nil, ErrUnexpectedOp
	}
	dec := ber.NewDecoder(op.Data)
	var uris []string
	for dec.Remaining() > 0 {
		uri, err := dec.ReadString()
		if err != nil {
			return nil, NewParseError(dec.Offset(), "failed to read reference URI", err)
		}
		uris = append(uris, uri)
	}
	return uris, nil
}

package ldap

import (
	"github.com/KilimcininKorOglu/adnotify/internal/ber"
)

// SearchScope represents the scope of an LDAP search operation
type SearchScope int

const (
	// ScopeBaseObject searches only the base object
	ScopeBaseObject SearchScope = 0
	// ScopeSingleLevel searches one level below the base object
	ScopeSingleLevel SearchScope = 1
	// ScopeWholeSubtree searches the entire subtree
	ScopeWholeSubtree SearchScope = 2
)

func (s SearchScope) String() string {
	switch s {
	case ScopeBaseObject:
		return "BaseObject"
	case ScopeSingleLevel:
		return "SingleLevel"
	case ScopeWholeSubtree:
		return "WholeSubtree"
	default:
		return "Unknown"
	}
}

// DerefAliases represents how aliases are dereferenced during search.
type DerefAliases int

const (
	DerefNever          DerefAliases = 0
	DerefInSearching    DerefAliases = 1
	DerefFindingBaseObj DerefAliases = 2
	DerefAlways         DerefAliases = 3
)

// SearchRequest represents an LDAP Search Request.
//
//	SearchRequest ::= [APPLICATION 3] SEQUENCE {
//	    baseObject      LDAPDN,
//	    scope           ENUMERATED { baseObject(0), singleLevel(1), wholeSubtree(2) },
//	    derefAliases    ENUMERATED { ... },
//	    sizeLimit       INTEGER (0 .. maxInt),
//	    timeLimit       INTEGER (0 .. maxInt),
//	    typesOnly       BOOLEAN,
//	    filter          Filter,
//	    attributes      AttributeSelection
//	}
type SearchRequest struct {
	BaseObject   string
	Scope        SearchScope
	DerefAliases DerefAliases
	// SizeLimit and TimeLimit of zero mean no client-requested limit.
	SizeLimit  int
	TimeLimit  int
	TypesOnly  bool
	Filter     *Filter
	Attributes []string
}

// Operation encodes the request as a protocol operation. A nil Filter is
// sent as (objectClass=*).
func (r *SearchRequest) Operation() (*RawOperation, error) {
	filter := r.Filter
	if filter == nil {
		filter = PresentFilter("objectClass")
	}

	enc := ber.NewEncoder(128 + len(r.BaseObject))
	if err := enc.WriteString(r.BaseObject); err != nil {
		return nil, err
	}
	if err := enc.WriteEnumerated(int64(r.Scope)); err != nil {
		return nil, err
	}
	if err := enc.WriteEnumerated(int64(r.DerefAliases)); err != nil {
		return nil, err
	}
	if err := enc.WriteInteger(int64(r.SizeLimit)); err != nil {
		return nil, err
	}
	if err := enc.WriteInteger(int64(r.TimeLimit)); err != nil {
		return nil, err
	}
	if err := enc.WriteBoolean(r.TypesOnly); err != nil {
		return nil, err
	}
	if err := filter.encode(enc); err != nil {
		return nil, err
	}

	attrs := enc.BeginSequence()
	for _, a := range r.Attributes {
		if err := enc.WriteString(a); err != nil {
			return nil, err
		}
	}
	if err := enc.End(attrs); err != nil {
		return nil, err
	}

	return &RawOperation{Tag: ApplicationSearchRequest, Constructed: true, Data: enc.Bytes()}, nil
}

// AbandonRequest encodes AbandonRequest ::= [APPLICATION 16] MessageID.
func AbandonRequest(messageID int) (*RawOperation, error) {
	if messageID < MinMessageID || messageID > MaxMessageID {
		return nil, ErrInvalidMessageID
	}
	enc := ber.NewEncoder(8)
	if err := enc.WriteInteger(int64(messageID)); err != nil {
		return nil, err
	}
	// Strip the INTEGER tag and length; the operation tag replaces them.
	data := enc.Bytes()
	return &RawOperation{Tag: ApplicationAbandonRequest, Data: data[2:]}, nil
}

// ParseAbandonRequest returns the message ID carried by an AbandonRequest.
func ParseAbandonRequest(op *RawOperation) (int, error) {
	if op == nil || op.Tag != ApplicationAbandonRequest || len(op.Data) == 0 {
		return 0, ErrUnexpectedOp
	}
	var v int64
	if op.Data[0]&0x80 != 0 {
		v = -1
	}
	for _, b := range op.Data {
		v = v<<8 | int64(b)
	}
	return int(v), nil
}

// UnbindRequest encodes UnbindRequest ::= [APPLICATION 2] NULL.
func UnbindRequest() *RawOperation {
	return &RawOperation{Tag: ApplicationUnbindRequest}
}

// ParseSearchRequest decodes a SearchRequest. The filter is validated as a
// single element but not decoded; test servers use this to inspect what a
// client asked for.
func ParseSearchRequest(op *RawOperation) (*SearchRequest, error) {
	if op == nil || op.Tag != ApplicationSearchRequest {
		return nil, ErrUnexpectedOp
	}
	dec := ber.NewDecoder(op.Data)
	req := &SearchRequest{}

	var err error
	if req.BaseObject, err = dec.ReadString(); err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read baseObject", err)
	}
	scope, err := dec.ReadEnumerated()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read scope", err)
	}
	req.Scope = SearchScope(scope)
	deref, err := dec.ReadEnumerated()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read derefAliases", err)
	}
	req.DerefAliases = DerefAliases(deref)
	size, err := dec.ReadInteger()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read sizeLimit", err)
	}
	req.SizeLimit = int(size)
	limit, err := dec.ReadInteger()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read timeLimit", err)
	}
	req.TimeLimit = int(limit)
	if req.TypesOnly, err = dec.ReadBoolean(); err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read typesOnly", err)
	}
	if err := dec.Skip(); err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read filter", err)
	}

	attrs, err := dec.ReadSequenceContents()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read attributes", err)
	}
	for attrs.Remaining() > 0 {
		a, err := attrs.ReadString()
		if err != nil {
			return nil, NewParseError(dec.Offset(), "failed to read attribute", err)
		}
		req.Attributes = append(req.Attributes, a)
	}
	return req, nil
}

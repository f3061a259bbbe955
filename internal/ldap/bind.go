package ldap

import (
	"github.com/KilimcininKorOglu/adnotify/internal/ber"
)

// ProtocolVersion is the only LDAP version spoken.
const ProtocolVersion = 3

// contextTagSimpleAuth is AuthenticationChoice simple [0].
const contextTagSimpleAuth = 0

// BindRequest is a simple-authentication bind.
//
//	BindRequest ::= [APPLICATION 0] SEQUENCE {
//	    version         INTEGER (1 .. 127),
//	    name            LDAPDN,
//	    authentication  AuthenticationChoice
//	}
type BindRequest struct {
	Name     string
	Password []byte
}

// IsAnonymous reports whether the bind carries no credentials.
func (r *BindRequest) IsAnonymous() bool {
	return r.Name == "" && len(r.Password) == 0
}

// Operation encodes the request as a protocol operation.
func (r *BindRequest) Operation() (*RawOperation, error) {
	enc := ber.NewEncoder(32 + len(r.Name) + len(r.Password))
	if err := enc.WriteInteger(ProtocolVersion); err != nil {
		return nil, err
	}
	if err := enc.WriteString(r.Name); err != nil {
		return nil, err
	}
	if err := enc.WriteTaggedValue(contextTagSimpleAuth, false, r.Password); err != nil {
		return nil, err
	}
	return &RawOperation{Tag: ApplicationBindRequest, Constructed: true, Data: enc.Bytes()}, nil
}

// ParseBindResponse decodes a BindResponse. The optional serverSaslCreds
// field is ignored.
func ParseBindResponse(op *RawOperation) (*LDAPResult, error) {
	if op == nil || op.Tag != ApplicationBindResponse {
		return nil, ErrUnexpectedOp
	}
	return parseLDAPResult(ber.NewDecoder(op.Data))
}

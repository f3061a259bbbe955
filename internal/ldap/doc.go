// Package ldap implements the client side of the LDAP v3 message layer
// described in RFC 4511.
//
// It covers what a change-notification client needs: the LDAPMessage
// envelope with controls, simple BindRequest, SearchRequest (with a small
// filter language), AbandonRequest and UnbindRequest encoding, and parsing
// of BindResponse, SearchResultEntry, SearchResultReference and
// SearchResultDone.
//
// # Message Structure
//
//	LDAPMessage ::= SEQUENCE {
//	    messageID       MessageID,
//	    protocolOp      CHOICE { ... },
//	    controls        [0] Controls OPTIONAL
//	}
//
// Requests are built as typed values and wrapped in a Message:
//
//	req := &ldap.SearchRequest{
//	    BaseObject: "DC=srv5,DC=test.local,CN=MicrosoftDNS,DC=DomainDnsZones,DC=test,DC=local",
//	    Scope:      ldap.ScopeBaseObject,
//	    Filter:     ldap.PresentFilter("objectClass"),
//	    Attributes: []string{"dnsRecord"},
//	}
//	op, err := req.Operation()
//	msg := &ldap.Message{ID: 2, Operation: op, Controls: []ldap.Control{ldap.NotificationControl()}}
//	data, err := msg.Encode()
//
// Responses are read with ParseMessage and then decoded according to
// Message.Operation.Tag.
//
// # References
//
//   - RFC 4511: LDAP Protocol
//   - MS-ADTS 3.1.1.3.4.1.9: LDAP_SERVER_NOTIFICATION_OID
package ldap

package ldap

import (
	"fmt"

	"github.com/KilimcininKorOglu/adnotify/internal/ber"
)

// Control OIDs.
const (
	// NotificationOID is LDAP_SERVER_NOTIFICATION_OID. The server keeps the
	// search open and returns an entry every time an object in scope changes.
	NotificationOID = "1.2.840.113556.1.4.528"
	// PersistentSearchOID is the Persistent Search control
	// (draft-ietf-ldapext-psearch).
	PersistentSearchOID = "2.16.840.1.113730.3.4.3"
	// EntryChangeNotificationOID is attached by the server to entries
	// returned under a persistent search.
	EntryChangeNotificationOID = "2.16.840.1.113730.3.4.7"
)

// Persistent search change types.
const (
	ChangeTypeAdd    = 1
	ChangeTypeDelete = 2
	ChangeTypeModify = 4
	ChangeTypeModDN  = 8

	ChangeTypeAll = ChangeTypeAdd | ChangeTypeDelete | ChangeTypeModify | ChangeTypeModDN
)

// NotificationControl returns the change notification control. It is
// always critical and carries no value.
func NotificationControl() Control {
	return Control{OID: NotificationOID, Criticality: true}
}

// PersistentSearch is the value of the Persistent Search control.
//
//	PersistentSearch ::= SEQUENCE {
//	    changeTypes INTEGER,
//	    changesOnly BOOLEAN,
//	    returnECs   BOOLEAN
//	}
type PersistentSearch struct {
	ChangeTypes int
	ChangesOnly bool
	ReturnECs   bool
}

// Control encodes the persistent search as a critical control.
func (p *PersistentSearch) Control() (Control, error) {
	enc := ber.NewEncoder(16)
	seq := enc.BeginSequence()
	if err := enc.WriteInteger(int64(p.ChangeTypes)); err != nil {
		return Control{}, err
	}
	if err := enc.WriteBoolean(p.ChangesOnly); err != nil {
		return Control{}, err
	}
	if err := enc.WriteBoolean(p.ReturnECs); err != nil {
		return Control{}, err
	}
	if err := enc.End(seq); err != nil {
		return Control{}, err
	}
	return Control{OID: PersistentSearchOID, Criticality: true, Value: enc.Bytes()}, nil
}

// EntryChangeNotification describes why an entry was returned under a
// persistent search.
//
//	EntryChangeNotification ::= SEQUENCE {
//	    changeType ENUMERATED { add(1), delete(2), modify(4), modDN(8) },
//	    previousDN LDAPDN OPTIONAL,
//	    changeNumber INTEGER OPTIONAL
//	}
type EntryChangeNotification struct {
	ChangeType   int
	PreviousDN   string
	ChangeNumber int64
}

// ChangeTypeName returns a short name for a change type.
func ChangeTypeName(t int) string {
	switch t {
	case ChangeTypeAdd:
		return "add"
	case ChangeTypeDelete:
		return "delete"
	case ChangeTypeModify:
		return "modify"
	case ChangeTypeModDN:
		return "moddn"
	default:
		return fmt.Sprintf("unknown(%d)", t)
	}
}

// ParseEntryChangeNotification decodes the control value.
func ParseEntryChangeNotification(ctrl Control) (*EntryChangeNotification, error) {
	if ctrl.OID != EntryChangeNotificationOID {
		return nil, fmt.Errorf("ldap: control %s is not an entry change notification", ctrl.OID)
	}
	seq, err := ber.NewDecoder(ctrl.Value).ReadSequenceContents()
	if err != nil {
		return nil, NewParseError(0, "invalid entry change notification", err)
	}
	changeType, err := seq.ReadEnumerated()
	if err != nil {
		return nil, NewParseError(seq.Offset(), "failed to read changeType", err)
	}
	ecn := &EntryChangeNotification{ChangeType: int(changeType)}

	if seq.IsUniversalTag(ber.TagOctetString) {
		if ecn.PreviousDN, err = seq.ReadString(); err != nil {
			return nil, NewParseError(seq.Offset(), "failed to read previousDN", err)
		}
	}
	if seq.IsUniversalTag(ber.TagInteger) {
		if ecn.ChangeNumber, err = seq.ReadInteger(); err != nil {
			return nil, NewParseError(seq.Offset(), "failed to read changeNumber", err)
		}
	}
	return ecn, nil
}

// Control encodes the notification, for test servers.
func (ecn *EntryChangeNotification) Control() (Control, error) {
	enc := ber.NewEncoder(32)
	seq := enc.BeginSequence()
	if err := enc.WriteEnumerated(int64(ecn.ChangeType)); err != nil {
		return Control{}, err
	}
	if ecn.PreviousDN != "" {
		if err := enc.WriteString(ecn.PreviousDN); err != nil {
			return Control{}, err
		}
	}
	if ecn.ChangeNumber > 0 {
		if err := enc.WriteInteger(ecn.ChangeNumber); err != nil {
			return Control{}, err
		}
	}
	if err := enc.End(seq); err != nil {
		return Control{}, err
	}
	return Control{OID: EntryChangeNotificationOID, Value: enc.Bytes()}, nil
}

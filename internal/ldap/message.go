package ldap

import (
	"github.com/KilimcininKorOglu/adnotify/internal/ber"
)

// ParseMessage decodes one BER-encoded LDAPMessage.
func ParseMessage(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}

	outer := ber.NewDecoder(data)
	dec, err := outer.ReadSequenceContents()
	if err != nil {
		return nil, NewParseError(0, "expected SEQUENCE for LDAPMessage", err)
	}

	id, err := dec.ReadInteger()
	if err != nil {
		return nil, NewParseError(dec.Offset(), "failed to read messageID", err)
	}
	if id < MinMessageID || id > MaxMessageID {
		return nil, ErrInvalidMessageID
	}

	opOffset := dec.Offset()
	tag, content, err := dec.ReadElement()
	if err != nil {
		return nil, NewParseError(opOffset, "failed to read protocolOp", err)
	}
	if tag.Class != ber.ClassApplication {
		return nil, NewParseError(opOffset, "protocolOp must have APPLICATION tag class", ErrInvalidOperation)
	}

	msg := &Message{
		ID: int(id),
		Operation: &RawOperation{
			Tag:         tag.Number,
			Constructed: tag.Constructed,
			Data:        append([]byte(nil), content...),
		},
	}

	if dec.IsContextTag(ContextTagControls) {
		controls, err := parseControls(dec)
		if err != nil {
			return nil, NewParseError(dec.Offset(), "failed to parse controls", err)
		}
		msg.Controls = controls
	}

	return msg, nil
}

// parseControls reads Controls ::= [0] SEQUENCE OF Control.
func parseControls(dec *ber.Decoder) ([]Control, error) {
	list, err := dec.ReadContextContents(ContextTagControls)
	if err != nil {
		return nil, err
	}

	var controls []Control
	for list.Remaining() > 0 {
		ctrl, err := parseControl(list)
		if err != nil {
			return nil, err
		}
		controls = append(controls, ctrl)
	}
	return controls, nil
}

func parseControl(dec *ber.Decoder) (Control, error) {
	var ctrl Control

	seq, err := dec.ReadSequenceContents()
	if err != nil {
		return ctrl, err
	}

	if ctrl.OID, err = seq.ReadString(); err != nil {
		return ctrl, NewParseError(seq.Offset(), "failed to read control OID", err)
	}
	if seq.IsUniversalTag(ber.TagBoolean) {
		if ctrl.Criticality, err = seq.ReadBoolean(); err != nil {
			return ctrl, NewParseError(seq.Offset(), "failed to read control criticality", err)
		}
	}
	if seq.IsUniversalTag(ber.TagOctetString) {
		if ctrl.Value, err = seq.ReadOctetString(); err != nil {
			return ctrl, NewParseError(seq.Offset(), "failed to read control value", err)
		}
	}
	return ctrl, nil
}

// Encode encodes the message to BER.
func (m *Message) Encode() ([]byte, error) {
	if m.ID < MinMessageID || m.ID > MaxMessageID {
		return nil, ErrInvalidMessageID
	}
	if m.Operation == nil {
		return nil, ErrMissingOperation
	}

	enc := ber.NewEncoder(64 + len(m.Operation.Data))
	seq := enc.BeginSequence()

	if err := enc.WriteInteger(int64(m.ID)); err != nil {
		return nil, err
	}

	if m.Operation.Constructed {
		pos := enc.BeginApplication(m.Operation.Tag)
		enc.WriteRaw(m.Operation.Data)
		if err := enc.End(pos); err != nil {
			return nil, err
		}
	} else if err := enc.WriteApplicationPrimitive(m.Operation.Tag, m.Operation.Data); err != nil {
		return nil, err
	}

	if len(m.Controls) > 0 {
		if err := encodeControls(enc, m.Controls); err != nil {
			return nil, err
		}
	}

	if err := enc.End(seq); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

func encodeControls(enc *ber.Encoder, controls []Control) error {
	list := enc.BeginContext(ContextTagControls)
	for _, ctrl := range controls {
		seq := enc.BeginSequence()
		if err := enc.WriteString(ctrl.OID); err != nil {
			return err
		}
		// criticality is DEFAULT FALSE and omitted when false
		if ctrl.Criticality {
			if err := enc.WriteBoolean(true); err != nil {
				return err
			}
		}
		if ctrl.Value != nil {
			if err := enc.WriteOctetString(ctrl.Value); err != nil {
				return err
			}
		}
		if err := enc.End(seq); err != nil {
			return err
		}
	}
	return enc.End(list)
}

// FindControl returns the first control with the given OID.
func FindControl(controls []Control, oid string) (Control, bool) {
	for _, ctrl := range controls {
		if ctrl.OID == oid {
			return ctrl, true
		}
	}
	return Control{}, false
}

package ber

import "errors"

// Encoder errors.
var (
	ErrInvalidTagClass  = errors.New("ber: invalid tag class")
	ErrInvalidTagNumber = errors.New("ber: invalid tag number")
	ErrNegativeLength   = errors.New("ber: negative length not allowed")
)

// Encoder appends BER elements to an internal buffer.
type Encoder struct {
	buf []byte
}

// NewEncoder creates an Encoder with the given initial capacity.
func NewEncoder(capacity int) *Encoder {
	if capacity <= 0 {
		capacity = 64
	}
	return &Encoder{buf: make([]byte, 0, capacity)}
}

// Bytes returns the encoded data. The slice aliases the encoder's buffer.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of encoded bytes.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// Reset clears the buffer for reuse.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// WriteTag writes an identifier octet, using the high-tag-number form for
// numbers above 30.
func (e *Encoder) WriteTag(class, constructed, number int) error {
	switch class {
	case ClassUniversal, ClassApplication, ClassContextSpecific, ClassPrivate:
	default:
		return ErrInvalidTagClass
	}
	if number < 0 {
		return ErrInvalidTagNumber
	}

	if number <= 30 {
		e.buf = append(e.buf, byte(class)|byte(constructed)|byte(number))
		return nil
	}

	e.buf = append(e.buf, byte(class)|byte(constructed)|0x1F)
	e.buf = appendBase128(e.buf, number)
	return nil
}

func appendBase128(buf []byte, value int) []byte {
	if value == 0 {
		return append(buf, 0)
	}
	var tmp [5]byte
	n := 0
	for value > 0 {
		tmp[n] = byte(value & 0x7F)
		value >>= 7
		n++
	}
	for i := n - 1; i >= 0; i-- {
		b := tmp[i]
		if i > 0 {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}

// WriteLength writes a definite length in short or long form.
func (e *Encoder) WriteLength(length int) error {
	if length < 0 {
		return ErrNegativeLength
	}
	e.buf = append(e.buf, encodeLength(length)...)
	return nil
}

func encodeLength(length int) []byte {
	if length <= MaxShortFormLength {
		return []byte{byte(length)}
	}
	n := 0
	for tmp := length; tmp > 0; tmp >>= 8 {
		n++
	}
	out := make([]byte, 1+n)
	out[0] = byte(LengthLongFormBit | n)
	for i := 0; i < n; i++ {
		out[n-i] = byte(length >> (8 * i))
	}
	return out
}

func (e *Encoder) writePrimitive(class, number int, content []byte) error {
	if err := e.WriteTag(class, TypePrimitive, number); err != nil {
		return err
	}
	if err := e.WriteLength(len(content)); err != nil {
		return err
	}
	e.buf = append(e.buf, content...)
	return nil
}

// WriteBoolean writes a BOOLEAN; TRUE is encoded as 0xFF.
func (e *Encoder) WriteBoolean(v bool) error {
	b := byte(0x00)
	if v {
		b = 0xFF
	}
	return e.writePrimitive(ClassUniversal, TagBoolean, []byte{b})
}

// WriteInteger writes an INTEGER in minimal two's complement form.
func (e *Encoder) WriteInteger(v int64) error {
	return e.writePrimitive(ClassUniversal, TagInteger, encodeInteger(v))
}

// WriteEnumerated writes an ENUMERATED value.
func (e *Encoder) WriteEnumerated(v int64) error {
	return e.writePrimitive(ClassUniversal, TagEnumerated, encodeInteger(v))
}

// WriteOctetString writes an OCTET STRING.
func (e *Encoder) WriteOctetString(v []byte) error {
	return e.writePrimitive(ClassUniversal, TagOctetString, v)
}

// WriteString writes s as an OCTET STRING (LDAPString, LDAPDN, LDAPOID).
func (e *Encoder) WriteString(s string) error {
	return e.WriteOctetString([]byte(s))
}

// WriteNull writes a NULL.
func (e *Encoder) WriteNull() error {
	return e.writePrimitive(ClassUniversal, TagNull, nil)
}

// WriteTaggedValue writes a context-specific element around pre-encoded content.
func (e *Encoder) WriteTaggedValue(number int, constructed bool, value []byte) error {
	flag := TypePrimitive
	if constructed {
		flag = TypeConstructed
	}
	if err := e.WriteTag(ClassContextSpecific, flag, number); err != nil {
		return err
	}
	if err := e.WriteLength(len(value)); err != nil {
		return err
	}
	e.buf = append(e.buf, value...)
	return nil
}

// WriteApplicationPrimitive writes a primitive APPLICATION element, used by
// operations such as AbandonRequest and DelRequest.
func (e *Encoder) WriteApplicationPrimitive(number int, content []byte) error {
	return e.writePrimitive(ClassApplication, number, content)
}

// WriteRaw appends already encoded bytes.
func (e *Encoder) WriteRaw(data []byte) {
	e.buf = append(e.buf, data...)
}

// encodeInteger returns the minimal two's complement encoding of v.
func encodeInteger(v int64) []byte {
	n := 1
	for tmp := v; tmp > 127 || tmp < -128; tmp >>= 8 {
		n++
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = byte(v >> (8 * i))
	}
	return out
}

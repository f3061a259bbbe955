package ber

import (
	"bufio"
	"io"
)

// Decoder reads BER elements from a byte slice.
type Decoder struct {
	data   []byte
	offset int
}

// NewDecoder creates a Decoder over data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Offset returns the current read position.
func (d *Decoder) Offset() int {
	return d.offset
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.offset
}

// ReadTag reads an identifier octet (and its high-tag-number continuation).
func (d *Decoder) ReadTag() (Tag, error) {
	start := d.offset
	if d.offset >= len(d.data) {
		return Tag{}, newDecodeError(start, "cannot read tag", ErrUnexpectedEOF)
	}

	first := d.data[d.offset]
	d.offset++

	tag := Tag{
		Class:       int(first & 0xC0),
		Constructed: first&TypeConstructed != 0,
		Number:      int(first & 0x1F),
	}
	if tag.Number != 0x1F {
		return tag, nil
	}

	number := 0
	for {
		if d.offset >= len(d.data) {
			return Tag{}, newDecodeError(start, "cannot read long form tag number", ErrUnexpectedEOF)
		}
		if number > 1<<24 {
			return Tag{}, newDecodeError(d.offset, "tag number overflow", nil)
		}
		b := d.data[d.offset]
		d.offset++
		number = number<<7 | int(b&0x7F)
		if b&0x80 == 0 {
			break
		}
	}
	tag.Number = number
	return tag, nil
}

// PeekTag reads the next tag without consuming it.
func (d *Decoder) PeekTag() (Tag, error) {
	saved := d.offset
	tag, err := d.ReadTag()
	d.offset = saved
	return tag, err
}

// ReadLength reads a definite length and checks it fits in the remaining data.
func (d *Decoder) ReadLength() (int, error) {
	start := d.offset
	if d.offset >= len(d.data) {
		return 0, newDecodeError(start, "cannot read length", ErrUnexpectedEOF)
	}

	first := d.data[d.offset]
	d.offset++

	length := int(first)
	if first&LengthLongFormBit != 0 {
		n := int(first &^ LengthLongFormBit)
		if n == 0 {
			return 0, newDecodeError(start, "indefinite length", ErrIndefiniteLength)
		}
		if n > maxLengthOctets {
			return 0, newDecodeError(start, "length too large", ErrInvalidLength)
		}
		if d.offset+n > len(d.data) {
			return 0, newDecodeError(start, "truncated length", ErrUnexpectedEOF)
		}
		length = 0
		for i := 0; i < n; i++ {
			length = length<<8 | int(d.data[d.offset])
			d.offset++
		}
		if length < 0 {
			return 0, newDecodeError(start, "negative length", ErrInvalidLength)
		}
	}

	if length > d.Remaining() {
		return 0, newDecodeError(start, "length exceeds data", ErrUnexpectedEOF)
	}
	return length, nil
}

// ReadElement reads one complete TLV element and returns its tag and content.
func (d *Decoder) ReadElement() (Tag, []byte, error) {
	tag, err := d.ReadTag()
	if err != nil {
		return Tag{}, nil, err
	}
	length, err := d.ReadLength()
	if err != nil {
		return Tag{}, nil, err
	}
	content := d.data[d.offset : d.offset+length]
	d.offset += length
	return tag, content, nil
}

// expect reads an element and checks its class and number.
func (d *Decoder) expect(class, number int) ([]byte, error) {
	start := d.offset
	tag, content, err := d.ReadElement()
	if err != nil {
		return nil, err
	}
	if !tag.Is(class, number) {
		d.offset = start
		return nil, &TagMismatchError{
			Offset:   start,
			Expected: Tag{Class: class, Number: number},
			Actual:   tag,
		}
	}
	return content, nil
}

// Skip consumes the next element.
func (d *Decoder) Skip() error {
	_, _, err := d.ReadElement()
	return err
}

// ReadBoolean reads a BOOLEAN.
func (d *Decoder) ReadBoolean() (bool, error) {
	start := d.offset
	content, err := d.expect(ClassUniversal, TagBoolean)
	if err != nil {
		return false, err
	}
	if len(content) != 1 {
		return false, newDecodeError(start, "boolean must be one octet", ErrInvalidBoolean)
	}
	return content[0] != 0, nil
}

// ReadInteger reads an INTEGER.
func (d *Decoder) ReadInteger() (int64, error) {
	start := d.offset
	content, err := d.expect(ClassUniversal, TagInteger)
	if err != nil {
		return 0, err
	}
	return decodeInteger(start, content)
}

// ReadEnumerated reads an ENUMERATED value.
func (d *Decoder) ReadEnumerated() (int64, error) {
	start := d.offset
	content, err := d.expect(ClassUniversal, TagEnumerated)
	if err != nil {
		return 0, err
	}
	return decodeInteger(start, content)
}

func decodeInteger(offset int, content []byte) (int64, error) {
	if len(content) == 0 || len(content) > 8 {
		return 0, newDecodeError(offset, "integer length out of range", ErrInvalidInteger)
	}
	v := int64(int8(content[0]))
	for _, b := range content[1:] {
		v = v<<8 | int64(b)
	}
	return v, nil
}

// ReadOctetString reads an OCTET STRING. The returned slice is a copy.
func (d *Decoder) ReadOctetString() ([]byte, error) {
	content, err := d.expect(ClassUniversal, TagOctetString)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(content))
	copy(out, content)
	return out, nil
}

// ReadString reads an OCTET STRING as a string.
func (d *Decoder) ReadString() (string, error) {
	content, err := d.expect(ClassUniversal, TagOctetString)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// ReadSequenceContents enters a SEQUENCE and returns a decoder over its content.
func (d *Decoder) ReadSequenceContents() (*Decoder, error) {
	content, err := d.expect(ClassUniversal, TagSequence)
	if err != nil {
		return nil, err
	}
	return NewDecoder(content), nil
}

// ReadSetContents enters a SET and returns a decoder over its content.
func (d *Decoder) ReadSetContents() (*Decoder, error) {
	content, err := d.expect(ClassUniversal, TagSet)
	if err != nil {
		return nil, err
	}
	return NewDecoder(content), nil
}

// ReadContextContents enters a context-specific element.
func (d *Decoder) ReadContextContents(number int) (*Decoder, error) {
	content, err := d.expect(ClassContextSpecific, number)
	if err != nil {
		return nil, err
	}
	return NewDecoder(content), nil
}

// IsContextTag reports whether the next element is context-specific [number].
func (d *Decoder) IsContextTag(number int) bool {
	tag, err := d.PeekTag()
	return err == nil && tag.Is(ClassContextSpecific, number)
}

// IsUniversalTag reports whether the next element is the given universal type.
func (d *Decoder) IsUniversalTag(number int) bool {
	tag, err := d.PeekTag()
	return err == nil && tag.Is(ClassUniversal, number)
}

// maxTagNumberOctets bounds the long form tag number read by ReadPacket,
// matching the overflow check in ReadTag.
const maxTagNumberOctets = 5

// ReadPacket reads exactly one top-level element (identifier, length and
// content) from r. Elements longer than limit bytes are rejected before
// their content is read.
func ReadPacket(r *bufio.Reader, limit int) ([]byte, error) {
	head := make([]byte, 0, 6)

	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	head = append(head, tag)
	if tag&0x1F == 0x1F {
		for i := 0; ; i++ {
			if i == maxTagNumberOctets {
				return nil, ErrTagTooLong
			}
			b, err := r.ReadByte()
			if err != nil {
				return nil, noEOF(err)
			}
			head = append(head, b)
			if b&0x80 == 0 {
				break
			}
		}
	}

	first, err := r.ReadByte()
	if err != nil {
		return nil, noEOF(err)
	}
	head = append(head, first)

	length := int(first)
	if first&LengthLongFormBit != 0 {
		n := int(first &^ LengthLongFormBit)
		if n == 0 {
			return nil, ErrIndefiniteLength
		}
		if n > maxLengthOctets {
			return nil, ErrInvalidLength
		}
		length = 0
		for i := 0; i < n; i++ {
			b, err := r.ReadByte()
			if err != nil {
				return nil, noEOF(err)
			}
			head = append(head, b)
			length = length<<8 | int(b)
		}
	}
	if length < 0 {
		return nil, ErrInvalidLength
	}
	if limit > 0 && length > limit {
		return nil, ErrPacketTooLarge
	}

	packet := make([]byte, len(head)+length)
	copy(packet, head)
	if _, err := io.ReadFull(r, packet[len(head):]); err != nil {
		return nil, noEOF(err)
	}
	return packet, nil
}

// noEOF turns an EOF inside an element into io.ErrUnexpectedEOF so callers
// can tell a clean close from a truncated packet.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

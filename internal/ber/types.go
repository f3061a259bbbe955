package ber

// Tag classes (bits 8-7 of the identifier octet).
const (
	ClassUniversal       = 0x00
	ClassApplication     = 0x40
	ClassContextSpecific = 0x80
	ClassPrivate         = 0xC0
)

// Primitive/constructed flag (bit 6 of the identifier octet).
const (
	TypePrimitive   = 0x00
	TypeConstructed = 0x20
)

// Universal tag numbers.
const (
	TagBoolean     = 0x01
	TagInteger     = 0x02
	TagBitString   = 0x03
	TagOctetString = 0x04
	TagNull        = 0x05
	TagOID         = 0x06
	TagEnumerated  = 0x0A
	TagUTF8String  = 0x0C
	TagSequence    = 0x10
	TagSet         = 0x11
)

const (
	// LengthLongFormBit marks a long form length octet.
	LengthLongFormBit = 0x80
	// MaxShortFormLength is the largest length encodable in one octet.
	MaxShortFormLength = 127
	// maxLengthOctets bounds long form lengths to what fits in an int32.
	maxLengthOctets = 4
)

// Tag identifies an element: class, primitive/constructed and number.
type Tag struct {
	Class       int
	Constructed bool
	Number      int
}

// Is reports whether the tag has the given class and number.
func (t Tag) Is(class, number int) bool {
	return t.Class == class && t.Number == number
}

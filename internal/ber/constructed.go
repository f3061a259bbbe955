package ber

// Constructed elements are written with a one octet length placeholder.
// End back-patches it, shifting the content when the long form is needed.

func (e *Encoder) begin(class, number int) int {
	// WriteTag only fails for invalid classes and negative numbers,
	// neither of which the typed Begin helpers can produce.
	_ = e.WriteTag(class, TypeConstructed, number)
	e.buf = append(e.buf, 0)
	return len(e.buf) - 1
}

// BeginSequence opens a SEQUENCE and returns the position for End.
func (e *Encoder) BeginSequence() int {
	return e.begin(ClassUniversal, TagSequence)
}

// BeginSet opens a SET and returns the position for End.
func (e *Encoder) BeginSet() int {
	return e.begin(ClassUniversal, TagSet)
}

// BeginApplication opens a constructed APPLICATION element.
func (e *Encoder) BeginApplication(number int) int {
	return e.begin(ClassApplication, number)
}

// BeginContext opens a constructed context-specific element.
func (e *Encoder) BeginContext(number int) int {
	return e.begin(ClassContextSpecific, number)
}

// End closes the constructed element opened at pos.
func (e *Encoder) End(pos int) error {
	if pos < 0 || pos >= len(e.buf) {
		return ErrUnbalancedEnd
	}
	contentLen := len(e.buf) - pos - 1
	if contentLen <= MaxShortFormLength {
		e.buf[pos] = byte(contentLen)
		return nil
	}

	lenBytes := encodeLength(contentLen)
	extra := len(lenBytes) - 1
	e.buf = append(e.buf, make([]byte, extra)...)
	copy(e.buf[pos+1+extra:], e.buf[pos+1:pos+1+contentLen])
	copy(e.buf[pos:], lenBytes)
	return nil
}

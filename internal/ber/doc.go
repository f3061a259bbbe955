// Package ber implements the subset of ASN.1 BER (ITU-T X.690) that LDAP
// clients need on the wire.
//
// # Encoding
//
// Primitive values are appended to an Encoder. Constructed values are
// opened with a Begin call and closed with End, which back-patches the
// length once the content is known:
//
//	enc := ber.NewEncoder(256)
//	pos := enc.BeginSequence()
//	enc.WriteInteger(1)
//	enc.WriteOctetString([]byte("dc=example,dc=com"))
//	enc.End(pos)
//	data := enc.Bytes()
//
// # Decoding
//
// A Decoder walks a byte slice. Constructed values are entered with the
// Read*Contents helpers, which return a sub-decoder bounded to the
// element's content:
//
//	dec := ber.NewDecoder(data)
//	seq, err := dec.ReadSequenceContents()
//	if err != nil {
//	    return err
//	}
//	id, err := seq.ReadInteger()
//
// # Framing
//
// ReadPacket reads exactly one top-level TLV element from a stream, which
// is how LDAP messages are delimited on a connection.
package ber

package main

import (
	"encoding/binary"
	"strings"
)

// Message keys shared with the host.
const (
	KeyCommand     uint32 = 0
	KeyZoneName    uint32 = 1
	KeyTrack       uint32 = 2
	KeyArtist      uint32 = 3
	KeyIsPlaying   uint32 = 4
	KeyVolumeLevel uint32 = 5
	KeyIsFixed     uint32 = 6
)

// TupleType tags how a tuple's bytes are to be read.
type TupleType string

const (
	TupleCString TupleType = "cstring"
	TupleInt     TupleType = "int"
	TupleUint    TupleType = "uint"
	TupleBytes   TupleType = "bytes"
)

// Tuple is one keyed value of a host message. Integers are little-endian and
// their width is len(Data).
type Tuple struct {
	Key  uint32    `json:"key"`
	Type TupleType `json:"type"`
	Data []byte    `json:"data"`
}

// Dictionary is the frame exchanged with the host in both directions.
type Dictionary struct {
	Tuples []Tuple `json:"tuples"`
}

// Find returns the first tuple with the given key, or nil.
func (d Dictionary) Find(key uint32) *Tuple {
	for i := range d.Tuples {
		if d.Tuples[i].Key == key {
			return &d.Tuples[i]
		}
	}
	return nil
}

// CStringTuple builds a NUL-terminated text tuple.
func CStringTuple(key uint32, s string) Tuple {
	b := make([]byte, 0, len(s)+1)
	b = append(b, s...)
	b = append(b, 0)
	return Tuple{Key: key, Type: TupleCString, Data: b}
}

// IntTuple builds a signed integer tuple of the given byte width (1, 2 or 4).
func IntTuple(key uint32, width int, v int32) Tuple {
	var b []byte
	switch width {
	case 1:
		b = []byte{byte(int8(v))}
	case 2:
		b = binary.LittleEndian.AppendUint16(nil, uint16(int16(v)))
	default:
		b = binary.LittleEndian.AppendUint32(nil, uint32(v))
	}
	return Tuple{Key: key, Type: TupleInt, Data: b}
}

// tupleInt decodes an integer tuple, sign-extending by width. A nil or empty
// tuple yields the volumeUnknown sentinel. Widths other than 1 and 2 are read as a
// 4-byte value; short data is zero-padded.
func tupleInt(t *Tuple) int {
	if t == nil || len(t.Data) == 0 {
		return volumeUnknown
	}
	unsigned := t.Type == TupleUint
	switch len(t.Data) {
	case 1:
		if unsigned {
			return int(t.Data[0])
		}
		return int(int8(t.Data[0]))
	case 2:
		v := binary.LittleEndian.Uint16(t.Data)
		if unsigned {
			return int(v)
		}
		return int(int16(v))
	default:
		var buf [4]byte
		copy(buf[:], t.Data)
		v := binary.LittleEndian.Uint32(buf[:])
		if unsigned {
			return int(v)
		}
		return int(int32(v))
	}
}

// tupleBool reads a 0/1 integer flag.
func tupleBool(t *Tuple) bool {
	return t != nil && tupleInt(t) == 1
}

// tupleString reads text up to the first NUL.
func tupleString(t *Tuple) string {
	if t == nil {
		return ""
	}
	b := t.Data
	for i, c := range b {
		if c == 0 {
			b = b[:i]
			break
		}
	}
	return strings.ToValidUTF8(string(b), "")
}

// HostUpdate is the sparse set of facts carried by one host message.
// Nil fields were absent.
type HostUpdate struct {
	ZoneName    *string
	TrackTitle  *string
	ArtistName  *string
	IsPlaying   *bool
	VolumeLevel *int
	IsFixed     *bool
}

// DecodeHostUpdate extracts the known keys from a dictionary. Unknown keys
// are ignored.
func DecodeHostUpdate(d Dictionary) HostUpdate {
	var u HostUpdate
	if t := d.Find(KeyZoneName); t != nil {
		s := boundText(tupleString(t), maxZoneBytes)
		u.ZoneName = &s
	}
	if t := d.Find(KeyTrack); t != nil {
		s := boundText(tupleString(t), maxTextBytes)
		u.TrackTitle = &s
	}
	if t := d.Find(KeyArtist); t != nil {
		s := boundText(tupleString(t), maxTextBytes)
		u.ArtistName = &s
	}
	if t := d.Find(KeyIsPlaying); t != nil {
		b := tupleBool(t)
		u.IsPlaying = &b
	}
	if t := d.Find(KeyVolumeLevel); t != nil {
		v := tupleInt(t)
		u.VolumeLevel = &v
	}
	if t := d.Find(KeyIsFixed); t != nil {
		b := tupleBool(t)
		u.IsFixed = &b
	}
	return u
}

// boundText truncates s to at most limit bytes without splitting a rune.
func boundText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := 0
	for i := range s {
		if i > limit {
			break
		}
		cut = i
	}
	return s[:cut]
}

// The oryx amf0 package support AMF0 codec.
package amf0

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// The AMF0 long string, please read @doc amf0_spec_121207.pdf, @page 8, @section 2.13 Long String Type
type LongString string

func NewLongString(s string) *LongString {
	v := LongString(s)
	return &v
}

func (v *LongString) amf0Marker() marker {
	return markerLongString
}

func (v *LongString) Size() int {
	return 1 + 4 + len(string(*v))
}

func (v *LongString) UnmarshalBinary(data []byte) (err error) {
	var p []byte
	if p = data; len(p) < 5 {
		return errDataNotEnough
	}
	if m := marker(p[0]); m != markerLongString {
		return fmt.Errorf("LongString marker %v is illegal", m)
	}

	size := binary.BigEndian.Uint32(p[1:])
	p = p[5:]
	if uint32(len(p)) < size {
		return errDataNotEnough
	}

	*v = LongString(string(p[:size]))
	return
}

func (v *LongString) MarshalBinary() (data []byte, err error) {
	data = make([]byte, v.Size())
	data[0] = byte(markerLongString)
	binary.BigEndian.PutUint32(data[1:], uint32(len(string(*v))))
	copy(data[5:], []byte(*v))
	return
}

// The AMF0 date, please read @doc amf0_spec_121207.pdf, @page 7, @section 2.13 Date Type.
// The timestamp is milliseconds since epoch, UTC. localTimeOffset is in minutes and is
// folded into the timestamp on decode to yield a UTC instant, per the FLV spec.
type Date struct {
	timestamp       float64
	localTimeOffset int16
}

func NewDate(timestampMs float64, localTimeOffsetMinutes int16) *Date {
	return &Date{timestamp: timestampMs, localTimeOffset: localTimeOffsetMinutes}
}

func (v *Date) amf0Marker() marker {
	return markerDate
}

func (v *Date) Size() int {
	return 1 + 8 + 2
}

func (v *Date) UnmarshalBinary(data []byte) (err error) {
	var p []byte
	if p = data; len(p) < 11 {
		return errDataNotEnough
	}
	if m := marker(p[0]); m != markerDate {
		return fmt.Errorf("Date marker %v is illegal", m)
	}

	bits := binary.BigEndian.Uint64(p[1:])
	ts := math.Float64frombits(bits)
	offset := int16(binary.BigEndian.Uint16(p[9:]))

	// get UTC time: fold in the local time offset.
	v.timestamp = ts + float64(offset)*60*1000
	v.localTimeOffset = offset
	return
}

func (v *Date) MarshalBinary() (data []byte, err error) {
	data = make([]byte, v.Size())
	data[0] = byte(markerDate)
	binary.BigEndian.PutUint64(data[1:], math.Float64bits(v.timestamp))
	binary.BigEndian.PutUint16(data[9:], uint16(v.localTimeOffset))
	return
}

// UTCMillis returns the UTC timestamp in milliseconds since epoch.
func (v *Date) UTCMillis() float64 {
	return v.timestamp
}

// Time converts the AMF0 date to a time.Time in UTC.
func (v *Date) Time() time.Time {
	return time.UnixMilli(int64(v.timestamp)).UTC()
}

// ScriptData is the decoded form of an FLV SCRIPTDATA tag body: a name
// (always "onMetaData" in practice) and an ordered set of properties.
type ScriptData struct {
	Name       string
	Properties *Object
}

// Get looks up a property by key, returning nil if absent.
func (v *ScriptData) Get(key string) Amf0 {
	if v.Properties == nil {
		return nil
	}
	return v.Properties.Get(key)
}

// ParseScriptData decodes an FLV SCRIPTDATA tag body: a String value
// (the script-data name) followed by an Object or EcmaArray of
// properties. Tolerates a missing ScriptDataObjectEnd sentinel, since
// some encoders omit it; detection is via the shared objectBase
// unmarshal path which peeks for the 00 00 09 terminator.
func ParseScriptData(p []byte) (*ScriptData, error) {
	if len(p) < 1 {
		return nil, errDataNotEnough
	}

	name, err := Discovery(p)
	if err != nil {
		return nil, fmt.Errorf("discover script data name, %v", err)
	}
	if err = name.UnmarshalBinary(p); err != nil {
		return nil, fmt.Errorf("unmarshal script data name, %v", err)
	}

	nameStr, ok := name.(*String)
	if !ok {
		return nil, fmt.Errorf("script data name is %v, not String", name.amf0Marker())
	}
	p = p[name.Size():]

	if len(p) < 1 {
		return &ScriptData{Name: string(*nameStr)}, nil
	}

	value, err := Discovery(p)
	if err != nil {
		return nil, fmt.Errorf("discover script data value, %v", err)
	}

	props := NewObject()
	switch v := value.(type) {
	case *Object:
		if err = v.UnmarshalBinary(p); err != nil {
			return nil, fmt.Errorf("unmarshal script data object, %v", err)
		}
		props = v
	case *EcmaArray:
		if err = v.UnmarshalBinary(p); err != nil {
			return nil, fmt.Errorf("unmarshal script data ecma array, %v", err)
		}
		props.properties = v.properties
	default:
		return nil, fmt.Errorf("script data value marker %v unsupported", value.amf0Marker())
	}

	return &ScriptData{Name: string(*nameStr), Properties: props}, nil
}

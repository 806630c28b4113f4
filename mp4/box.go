// Package mp4 builds byte-exact ISO-BMFF boxes: the `ftyp+moov`
// initialization segment and `moof+mdat` media segments consumed by
// Media Source Extensions.
package mp4

// Box is a node in the ISO-BMFF box tree: an 8-byte size+fourcc
// header, an optional raw payload that precedes any children, and the
// marshaled bytes of each child box in order.
// Refer to @doc ISO/IEC 14496-12, @section 4.2 Object Structure
type Box struct {
	Type     [4]byte
	Payload  []byte
	Children []*Box
}

func newBox(fourcc string, payload []byte, children ...*Box) *Box {
	var t [4]byte
	copy(t[:], fourcc)
	return &Box{Type: t, Payload: payload, Children: children}
}

// Size returns the total marshaled size of this box, header included.
func (b *Box) Size() int {
	size := 8 + len(b.Payload)
	for _, c := range b.Children {
		size += c.Size()
	}
	return size
}

// Marshal serializes the box and all its children to wire bytes.
func (b *Box) Marshal() []byte {
	size := b.Size()
	buf := make([]byte, 0, size)
	buf = append(buf, byte(size>>24), byte(size>>16), byte(size>>8), byte(size))
	buf = append(buf, b.Type[:]...)
	buf = append(buf, b.Payload...)
	for _, c := range b.Children {
		buf = append(buf, c.Marshal()...)
	}
	return buf
}

func be32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func be16(v uint16) []byte {
	return []byte{byte(v >> 8), byte(v)}
}

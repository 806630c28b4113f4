package mp4

// SampleFlags encodes the trun/sdtp per-sample dependency and sync
// flags. Refer to @doc ISO/IEC 14496-12, @section 8.8.3.1 Sample flags
type SampleFlags struct {
	IsLeading       uint8
	DependsOn       uint8
	IsDependedOn    uint8
	HasRedundancy   uint8
	IsNonSync       uint8
}

// encode packs the flags into the 32-bit trun sample_flags field:
// reserved(4) is_leading(2) sample_depends_on(2) sample_is_depended_on(2)
// sample_has_redundancy(2) sample_padding_value(3) sample_is_non_sync_sample(1)
// sample_degradation_priority(16).
func (f SampleFlags) encode() uint32 {
	var v uint32
	v |= uint32(f.IsLeading&0x03) << 26
	v |= uint32(f.DependsOn&0x03) << 24
	v |= uint32(f.IsDependedOn&0x03) << 22
	v |= uint32(f.HasRedundancy&0x03) << 20
	v |= uint32(f.IsNonSync&0x01) << 16
	return v
}

// Sample is one media sample queued into a media segment's trun/sdtp/mdat.
type Sample struct {
	Duration uint32
	Size     uint32
	CTS      int32 // composition time offset, video only
	Flags    SampleFlags
	Data     []byte
}

// MediaSegment assembles the `moof+mdat` fragment for one track's batch
// of samples, returning the full marshaled byte stream.
func MediaSegment(trackID uint32, sequenceNumber uint32, baseMediaDecodeTime uint32, isVideo bool, samples []Sample) []byte {
	moof := moofBox(trackID, sequenceNumber, baseMediaDecodeTime, isVideo, samples)
	mdat := mdatBox(samples)

	return append(moof.Marshal(), mdat.Marshal()...)
}

func moofBox(trackID, sequenceNumber, baseMediaDecodeTime uint32, isVideo bool, samples []Sample) *Box {
	mfhd := movieFragmentHeaderBox(sequenceNumber)
	traf := trackFragmentBox(trackID, baseMediaDecodeTime, isVideo, samples)
	moof := newBox("moof", nil, mfhd, traf)

	// trun's data_offset must point from the start of moof to the first
	// byte of sample data inside mdat. Compute it from the real
	// marshaled sizes of the boxes that precede mdat's payload, rather
	// than assume a fixed layout: moof's own size already accounts for
	// mfhd+traf(tfhd+tfdt+trun+sdtp), so data_offset is just moof's
	// size plus mdat's 8-byte header.
	dataOffset := uint32(moof.Size() + 8)
	patchTrunDataOffset(moof, dataOffset)

	return moof
}

// patchTrunDataOffset finds the trun box nested under moof/traf and
// overwrites its data_offset field in place, now that the enclosing
// moof's final size is known.
func patchTrunDataOffset(moof *Box, dataOffset uint32) {
	for _, traf := range moof.Children {
		if string(traf.Type[:]) != "traf" {
			continue
		}
		for _, b := range traf.Children {
			if string(b.Type[:]) == "trun" {
				off := be32(dataOffset)
				copy(b.Payload[8:12], off)
			}
		}
	}
}

func movieFragmentHeaderBox(sequenceNumber uint32) *Box {
	p := make([]byte, 0, 8)
	p = append(p, 0, 0, 0, 0)
	p = append(p, be32(sequenceNumber)...)
	return newBox("mfhd", p)
}

func trackFragmentBox(trackID, baseMediaDecodeTime uint32, isVideo bool, samples []Sample) *Box {
	tfhd := trackFragmentHeaderBox(trackID)
	tfdt := trackFragmentBaseMediaDecodeTimeBox(baseMediaDecodeTime)
	trun := trackRunBox(samples)

	children := []*Box{tfhd, tfdt, trun}
	if isVideo {
		children = append(children, sampleDependencyTableBox(samples))
	}
	return newBox("traf", nil, children...)
}

func trackFragmentHeaderBox(trackID uint32) *Box {
	p := make([]byte, 0, 8)
	p = append(p, 0x00, 0x02, 0x00, 0x00) // flags: default-base-is-moof
	p = append(p, be32(trackID)...)
	return newBox("tfhd", p)
}

func trackFragmentBaseMediaDecodeTimeBox(baseMediaDecodeTime uint32) *Box {
	p := make([]byte, 0, 8)
	p = append(p, 0, 0, 0, 0)
	p = append(p, be32(baseMediaDecodeTime)...)
	return newBox("tfdt", p)
}

// trunFlags enables data-offset-present, sample-duration-present,
// sample-size-present, sample-flags-present and
// sample-composition-time-offsets-present.
const trunFlags = 0x00000f01

func trackRunBox(samples []Sample) *Box {
	sampleCount := uint32(len(samples))

	p := make([]byte, 0, 16+16*len(samples))
	p = append(p, byte(trunFlags>>24), byte(trunFlags>>16), byte(trunFlags>>8), byte(trunFlags))
	p = append(p, be32(sampleCount)...)
	p = append(p, 0, 0, 0, 0) // data_offset, patched by patchTrunDataOffset once moof size is known

	for _, s := range samples {
		p = append(p, be32(s.Duration)...)
		p = append(p, be32(s.Size)...)
		p = append(p, be32(s.Flags.encode())...)
		p = append(p, be32(uint32(s.CTS))...)
	}

	return newBox("trun", p)
}

func sampleDependencyTableBox(samples []Sample) *Box {
	p := make([]byte, 0, 4+len(samples))
	p = append(p, 0, 0, 0, 0)
	for _, s := range samples {
		f := s.Flags
		b := (f.IsLeading&0x03)<<6 | (f.DependsOn&0x03)<<4 | (f.IsDependedOn&0x03)<<2 | (f.HasRedundancy & 0x03)
		p = append(p, b)
	}
	return newBox("sdtp", p)
}

func mdatBox(samples []Sample) *Box {
	size := 0
	for _, s := range samples {
		size += len(s.Data)
	}
	payload := make([]byte, 0, size)
	for _, s := range samples {
		payload = append(payload, s.Data...)
	}
	return newBox("mdat", payload)
}

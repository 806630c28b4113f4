// Package h264 parses the pieces of the H.264/AVC bitstream this
// module needs: EBSP-to-RBSP unescaping and the Sequence Parameter Set.
package h264

import (
	"fmt"

	"github.com/ossrs/flvgo-remux/bitreader"
)

// EBSPToRBSP strips the emulation-prevention byte (0x03) that the
// encoder inserts whenever 0x000000, 0x000001, 0x000002 or 0x000003
// would otherwise appear in the raw byte sequence payload.
func EBSPToRBSP(src []byte) []byte {
	dst := make([]byte, 0, len(src))
	for i := 0; i < len(src); i++ {
		if i >= 2 && src[i] == 0x03 && src[i-1] == 0x00 && src[i-2] == 0x00 {
			continue
		}
		dst = append(dst, src[i])
	}
	return dst
}

// FrameRate describes the VUI timing_info derived frame rate.
type FrameRate struct {
	Fixed bool
	FPS   float64
	Num   uint32
	Den   uint32
}

// Size is a width/height pair, in pixels.
type Size struct {
	Width  uint32
	Height uint32
}

// SPS is the subset of Sequence Parameter Set fields the remuxer and
// MIME-type synthesis need.
type SPS struct {
	ProfileIDC  uint32
	LevelIDC    uint32
	ProfileName string
	LevelName   string

	BitDepth           uint32
	RefFrames          uint32
	ChromaFormat       uint32
	ChromaFormatString string

	FrameRate FrameRate

	SARRatio    Size
	CodecSize   Size
	PresentSize Size
}

var sarWidthTable = [15]uint32{1, 12, 10, 16, 40, 24, 20, 32, 80, 18, 15, 64, 160, 4, 3}
var sarHeightTable = [15]uint32{1, 11, 11, 11, 33, 11, 11, 11, 33, 11, 11, 33, 99, 3, 2}
var chromaFormatTable = [4]uint32{0, 420, 422, 444}

// isHighProfile reports whether profile_idc is one of the profiles
// that carries the extended chroma_format_idc/bit_depth fields.
func isHighProfile(profileIDC uint32) bool {
	switch profileIDC {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 144:
		return true
	default:
		return false
	}
}

// ParseSPS decodes a Sequence Parameter Set NAL unit payload (with the
// NAL header byte still present, EBSP-encoded).
func ParseSPS(nal []byte) (*SPS, error) {
	if len(nal) < 4 {
		return nil, fmt.Errorf("h264: sps too short, %d bytes", len(nal))
	}

	rbsp := EBSPToRBSP(nal)
	gb := bitreader.New(rbsp)

	if _, err := gb.ReadByte(); err != nil {
		return nil, fmt.Errorf("h264: read nal header, %v", err)
	}

	profileIDC, err := gb.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("h264: read profile_idc, %v", err)
	}
	if _, err = gb.ReadByte(); err != nil { // constraint_set_flags[5] + reserved_zero[3]
		return nil, fmt.Errorf("h264: read constraint flags, %v", err)
	}
	levelIDC, err := gb.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("h264: read level_idc, %v", err)
	}
	if _, err = gb.ReadUEG(); err != nil { // seq_parameter_set_id
		return nil, fmt.Errorf("h264: read sps id, %v", err)
	}

	chromaFormatIDC := uint32(1)
	chromaFormat := uint32(420)
	bitDepth := uint32(8)

	if isHighProfile(uint32(profileIDC)) {
		if chromaFormatIDC, err = gb.ReadUEG(); err != nil {
			return nil, fmt.Errorf("h264: read chroma_format_idc, %v", err)
		}
		if chromaFormatIDC == 3 {
			if _, err = gb.ReadBits(1); err != nil { // separate_colour_plane_flag
				return nil, err
			}
		}
		if chromaFormatIDC <= 3 {
			chromaFormat = chromaFormatTable[chromaFormatIDC]
		}

		bitDepthLumaMinus8, err := gb.ReadUEG()
		if err != nil {
			return nil, fmt.Errorf("h264: read bit_depth_luma_minus8, %v", err)
		}
		bitDepth = bitDepthLumaMinus8 + 8

		if _, err = gb.ReadUEG(); err != nil { // bit_depth_chroma_minus8
			return nil, err
		}
		if _, err = gb.ReadBits(1); err != nil { // qpprime_y_zero_transform_bypass_flag
			return nil, err
		}

		scalingMatrixPresent, err := gb.ReadBool()
		if err != nil {
			return nil, err
		}
		if scalingMatrixPresent {
			count := 8
			if chromaFormatIDC == 3 {
				count = 12
			}
			for i := 0; i < count; i++ {
				present, err := gb.ReadBool()
				if err != nil {
					return nil, err
				}
				if present {
					size := 16
					if i >= 6 {
						size = 64
					}
					if err = skipScalingList(gb, size); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	if _, err = gb.ReadUEG(); err != nil { // log2_max_frame_num_minus4
		return nil, err
	}

	picOrderCntType, err := gb.ReadUEG()
	if err != nil {
		return nil, err
	}
	if picOrderCntType == 0 {
		if _, err = gb.ReadUEG(); err != nil { // log2_max_pic_order_cnt_lsb_minus4
			return nil, err
		}
	} else if picOrderCntType == 1 {
		if _, err = gb.ReadBits(1); err != nil { // delta_pic_order_always_zero_flag
			return nil, err
		}
		if _, err = gb.ReadSEG(); err != nil { // offset_for_non_ref_pic
			return nil, err
		}
		if _, err = gb.ReadSEG(); err != nil { // offset_for_top_to_bottom_field
			return nil, err
		}
		numRefFramesInCycle, err := gb.ReadUEG()
		if err != nil {
			return nil, err
		}
		for i := uint32(0); i < numRefFramesInCycle; i++ {
			if _, err = gb.ReadSEG(); err != nil { // offset_for_ref_frame
				return nil, err
			}
		}
	}

	refFrames, err := gb.ReadUEG() // max_num_ref_frames
	if err != nil {
		return nil, err
	}
	if _, err = gb.ReadBits(1); err != nil { // gaps_in_frame_num_value_allowed_flag
		return nil, err
	}

	picWidthInMbsMinus1, err := gb.ReadUEG()
	if err != nil {
		return nil, err
	}
	picHeightInMapUnitsMinus1, err := gb.ReadUEG()
	if err != nil {
		return nil, err
	}

	frameMbsOnlyFlag, err := gb.ReadBits(1)
	if err != nil {
		return nil, err
	}
	if frameMbsOnlyFlag == 0 {
		if _, err = gb.ReadBits(1); err != nil { // mb_adaptive_frame_field_flag
			return nil, err
		}
	}
	if _, err = gb.ReadBits(1); err != nil { // direct_8x8_inference_flag
		return nil, err
	}

	var cropLeft, cropRight, cropTop, cropBottom uint32
	frameCroppingFlag, err := gb.ReadBool()
	if err != nil {
		return nil, err
	}
	if frameCroppingFlag {
		if cropLeft, err = gb.ReadUEG(); err != nil {
			return nil, err
		}
		if cropRight, err = gb.ReadUEG(); err != nil {
			return nil, err
		}
		if cropTop, err = gb.ReadUEG(); err != nil {
			return nil, err
		}
		if cropBottom, err = gb.ReadUEG(); err != nil {
			return nil, err
		}
	}

	sarWidth, sarHeight := uint32(1), uint32(1)
	var fpsFixed = true
	var fpsNum, fpsDen uint32

	vuiPresent, err := gb.ReadBool()
	if err != nil {
		return nil, err
	}
	if vuiPresent {
		aspectRatioPresent, err := gb.ReadBool()
		if err != nil {
			return nil, err
		}
		if aspectRatioPresent {
			aspectRatioIDC, err := gb.ReadByte()
			if err != nil {
				return nil, err
			}
			if aspectRatioIDC > 0 && aspectRatioIDC < 16 {
				sarWidth = sarWidthTable[aspectRatioIDC-1]
				sarHeight = sarHeightTable[aspectRatioIDC-1]
			} else if aspectRatioIDC == 255 {
				hi, err := gb.ReadByte()
				if err != nil {
					return nil, err
				}
				lo, err := gb.ReadByte()
				if err != nil {
					return nil, err
				}
				sarWidth = uint32(hi)<<8 | uint32(lo)

				hi, err = gb.ReadByte()
				if err != nil {
					return nil, err
				}
				lo, err = gb.ReadByte()
				if err != nil {
					return nil, err
				}
				sarHeight = uint32(hi)<<8 | uint32(lo)
			}
		}

		overscanPresent, err := gb.ReadBool()
		if err != nil {
			return nil, err
		}
		if overscanPresent {
			if _, err = gb.ReadBool(); err != nil { // overscan_appropriate_flag
				return nil, err
			}
		}

		videoSignalPresent, err := gb.ReadBool()
		if err != nil {
			return nil, err
		}
		if videoSignalPresent {
			if _, err = gb.ReadBits(4); err != nil { // video_format + video_full_range_flag
				return nil, err
			}
			colorDescPresent, err := gb.ReadBool()
			if err != nil {
				return nil, err
			}
			if colorDescPresent {
				if _, err = gb.ReadBits(24); err != nil {
					return nil, err
				}
			}
		}

		chromaLocPresent, err := gb.ReadBool()
		if err != nil {
			return nil, err
		}
		if chromaLocPresent {
			if _, err = gb.ReadUEG(); err != nil { // chroma_sample_loc_type_top_field
				return nil, err
			}
			if _, err = gb.ReadUEG(); err != nil { // chroma_sample_loc_type_bottom_field
				return nil, err
			}
		}

		timingPresent, err := gb.ReadBool()
		if err != nil {
			return nil, err
		}
		if timingPresent {
			numUnitsInTick, err := gb.ReadBits(32)
			if err != nil {
				return nil, err
			}
			timeScale, err := gb.ReadBits(32)
			if err != nil {
				return nil, err
			}
			if fpsFixed, err = gb.ReadBool(); err != nil { // fixed_frame_rate_flag
				return nil, err
			}

			fpsNum = timeScale
			fpsDen = numUnitsInTick * 2
		}
	}

	sarScale := float64(1)
	if sarWidth != 1 || sarHeight != 1 {
		sarScale = float64(sarWidth) / float64(sarHeight)
	}

	var cropUnitX, cropUnitY uint32
	if chromaFormatIDC == 0 {
		cropUnitX = 1
		cropUnitY = 2 - frameMbsOnlyFlag
	} else {
		subWC, subHC := uint32(2), uint32(2)
		if chromaFormatIDC == 3 {
			subWC = 1
		}
		if chromaFormatIDC != 1 {
			subHC = 1
		}
		cropUnitX = subWC
		cropUnitY = subHC * (2 - frameMbsOnlyFlag)
	}

	codecWidth := (picWidthInMbsMinus1 + 1) * 16
	codecHeight := (2 - frameMbsOnlyFlag) * ((picHeightInMapUnitsMinus1 + 1) * 16)

	codecWidth -= (cropLeft + cropRight) * cropUnitX
	codecHeight -= (cropTop + cropBottom) * cropUnitY

	presentWidth := uint32(float64(codecWidth)*sarScale + 0.5)

	var fps float64
	if fpsDen != 0 {
		fps = float64(fpsNum) / float64(fpsDen)
	}

	return &SPS{
		ProfileIDC:  uint32(profileIDC),
		LevelIDC:    uint32(levelIDC),
		ProfileName: ProfileString(uint32(profileIDC)),
		LevelName:   LevelString(uint32(levelIDC)),

		BitDepth:           bitDepth,
		RefFrames:          refFrames,
		ChromaFormat:       chromaFormat,
		ChromaFormatString: ChromaFormatString(chromaFormat),

		FrameRate: FrameRate{
			Fixed: fpsFixed,
			FPS:   fps,
			Num:   fpsNum,
			Den:   fpsDen,
		},

		SARRatio:    Size{Width: sarWidth, Height: sarHeight},
		CodecSize:   Size{Width: codecWidth, Height: codecHeight},
		PresentSize: Size{Width: presentWidth, Height: codecHeight},
	}, nil
}

func skipScalingList(gb *bitreader.Reader, count int) error {
	lastScale := int32(8)
	nextScale := int32(8)

	for i := 0; i < count; i++ {
		if nextScale != 0 {
			deltaScale, err := gb.ReadSEG()
			if err != nil {
				return err
			}
			nextScale = (lastScale + deltaScale + 256) % 256
		}
		if nextScale != 0 {
			lastScale = nextScale
		}
	}
	return nil
}

// ProfileString maps profile_idc to its conventional name.
func ProfileString(profileIDC uint32) string {
	switch profileIDC {
	case 66:
		return "Baseline"
	case 77:
		return "Main"
	case 88:
		return "Extended"
	case 100:
		return "High"
	case 110:
		return "High10"
	case 122:
		return "High422"
	case 244:
		return "High444"
	default:
		return "Unknown"
	}
}

// LevelString renders level_idc as the conventional "major.minor" level number.
func LevelString(levelIDC uint32) string {
	return fmt.Sprintf("%.1f", float64(levelIDC)/10)
}

// ChromaFormatString maps the derived chroma format to its conventional name.
func ChromaFormatString(chroma uint32) string {
	switch chroma {
	case 420:
		return "4:2:0"
	case 422:
		return "4:2:2"
	case 444:
		return "4:4:4"
	default:
		return "Unknown"
	}
}

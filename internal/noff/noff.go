// Package noff parses the NOFF ("Nachos Object File Format") executable
// header used by the address-space loader (§4.C8). NOFF stores every
// integer field in whatever byte order the compiler that produced it used,
// so the header carries a magic number that lets the loader detect and
// correct for a byte-order mismatch; byteOrder below probes the host's own
// byte order to decode the words before that check.
package noff

import (
	"encoding/binary"
	"fmt"
)

// Magic is the expected value of the first header word in the file's
// native byte order.
const Magic = 0xbadfad

// headerWords is the number of 4-byte words in an on-disk NoffHeader:
// magic + 3 segments * 3 words each.
const headerWords = 1 + 3*3

// HeaderSize is the on-disk size of a NoffHeader in bytes.
const HeaderSize = headerWords * 4

// Segment describes one contiguous piece of a NOFF executable.
type Segment struct {
	VirtualAddr uint32
	InFileAddr  uint32
	Size        uint32
}

// Header is the decoded form of a NOFF file header: a magic number
// followed by the code, initialized-data, and uninitialized-data segments.
type Header struct {
	Code       Segment
	InitData   Segment
	UninitData Segment
}

// byteOrder reports the byte order of the host running this binary.
func byteOrder() binary.ByteOrder {
	if binary.BigEndian.Uint16([]byte{0x12, 0x34}) == 0x1234 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// swap32 reverses the byte order of a 32-bit word.
func swap32(x uint32) uint32 {
	return x<<24 | (x&0xff00)<<8 | (x>>8)&0xff00 | x>>24
}

// ParseHeader decodes a NOFF header from raw bytes, swapping every field
// if the magic number indicates the file was produced on a machine with
// the opposite byte order (§4.C8). Returns an error if raw is too short or
// the magic doesn't match in either byte order.
func ParseHeader(raw []byte) (Header, error) {
	if len(raw) < HeaderSize {
		return Header{}, fmt.Errorf("noff: header truncated: got %d bytes, need %d", len(raw), HeaderSize)
	}

	order := byteOrder()
	words := make([]uint32, headerWords)
	for i := range words {
		words[i] = order.Uint32(raw[i*4 : i*4+4])
	}

	swapped := false
	if words[0] != Magic {
		for i := range words {
			words[i] = swap32(words[i])
		}
		swapped = true
	}
	if words[0] != Magic {
		return Header{}, fmt.Errorf("noff: bad magic number %#x (swapped=%v)", words[0], swapped)
	}

	return Header{
		Code:       Segment{VirtualAddr: words[1], InFileAddr: words[2], Size: words[3]},
		InitData:   Segment{VirtualAddr: words[4], InFileAddr: words[5], Size: words[6]},
		UninitData: Segment{VirtualAddr: words[7], InFileAddr: words[8], Size: words[9]},
	}, nil
}

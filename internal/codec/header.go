package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const HeaderSize = 32

// EncodeHeader serializes an event header into a fixed-size block.
func EncodeHeader(dst []byte, header schema.EventHeader) []byte {
	if cap(dst) < HeaderSize {
		dst = make([]byte, HeaderSize)
	} else {
		dst = dst[:HeaderSize]
	}

	dst[0] = byte(header.Topic)
	dst[1] = 0
	binary.LittleEndian.PutUint16(dst[2:4], header.Version)
	binary.LittleEndian.PutUint16(dst[4:6], header.Source)
	binary.LittleEndian.PutUint16(dst[6:8], header.Flags)
	binary.LittleEndian.PutUint64(dst[8:16], header.Seq)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(header.TsEvent))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(header.TsRecv))

	return dst
}

// DecodeHeader parses a fixed-size header block.
func DecodeHeader(src []byte) (schema.EventHeader, bool) {
	if len(src) < HeaderSize {
		return schema.EventHeader{}, false
	}
	return schema.EventHeader{
		Topic:   schema.Topic(src[0]),
		Version: binary.LittleEndian.Uint16(src[2:4]),
		Source:  binary.LittleEndian.Uint16(src[4:6]),
		Flags:   binary.LittleEndian.Uint16(src[6:8]),
		Seq:     binary.LittleEndian.Uint64(src[8:16]),
		TsEvent: int64(binary.LittleEndian.Uint64(src[16:24])),
		TsRecv:  int64(binary.LittleEndian.Uint64(src[24:32])),
	}, true
}

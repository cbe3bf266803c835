package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const maxAssetNameLen = 255

// EncodeAccountUpdate appends a length-prefixed account update to dst.
// Layout: entry count u16, then per entry an asset name (u8 length +
// bytes), balance and locked. Asset names longer than 255 bytes are
// truncated.
func EncodeAccountUpdate(dst []byte, update schema.AccountUpdate) []byte {
	dst = dst[:0]
	var tmp [8]byte

	binary.LittleEndian.PutUint16(tmp[0:2], uint16(len(update.Entries)))
	dst = append(dst, tmp[0:2]...)
	for _, e := range update.Entries {
		name := e.Asset
		if len(name) > maxAssetNameLen {
			name = name[:maxAssetNameLen]
		}
		dst = append(dst, byte(len(name)))
		dst = append(dst, name...)
		binary.LittleEndian.PutUint64(tmp[:], uint64(e.Balance))
		dst = append(dst, tmp[:]...)
		binary.LittleEndian.PutUint64(tmp[:], uint64(e.Locked))
		dst = append(dst, tmp[:]...)
	}
	return dst
}

// DecodeAccountUpdate parses a length-prefixed account update payload.
func DecodeAccountUpdate(src []byte) (schema.AccountUpdate, bool) {
	if len(src) < 2 {
		return schema.AccountUpdate{}, false
	}
	count := int(binary.LittleEndian.Uint16(src[0:2]))
	offset := 2

	entries := make([]schema.BalanceEntry, 0, count)
	for i := 0; i < count; i++ {
		if offset >= len(src) {
			return schema.AccountUpdate{}, false
		}
		nameLen := int(src[offset])
		offset++
		if offset+nameLen+16 > len(src) {
			return schema.AccountUpdate{}, false
		}
		name := string(src[offset : offset+nameLen])
		offset += nameLen
		balance := int64(binary.LittleEndian.Uint64(src[offset : offset+8]))
		offset += 8
		locked := int64(binary.LittleEndian.Uint64(src[offset : offset+8]))
		offset += 8
		entries = append(entries, schema.BalanceEntry{
			Asset:   name,
			Balance: schema.Quantity(balance),
			Locked:  schema.Quantity(locked),
		})
	}
	return schema.AccountUpdate{Entries: entries}, true
}

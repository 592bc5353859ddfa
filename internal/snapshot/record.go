package snapshot

import (
	"encoding/binary"
	"hash/crc32"
)

// Record layout: version(1B) | bodyLen(4B BE) | body | crc32c(version|body)

const recordVersion byte = 1

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encodeRecord(body []byte) []byte {
	out := make([]byte, 0, 1+4+len(body)+4)
	out = append(out, recordVersion)
	var lb [4]byte
	binary.BigEndian.PutUint32(lb[:], uint32(len(body)))
	out = append(out, lb[:]...)
	out = append(out, body...)
	crc := crc32.Update(0, castagnoli, []byte{recordVersion})
	crc = crc32.Update(crc, castagnoli, body)
	var cb [4]byte
	binary.BigEndian.PutUint32(cb[:], crc)
	return append(out, cb[:]...)
}

// decodeRecord returns a copy of the body, or false when the frame is short,
// of an unknown version, or fails its checksum.
func decodeRecord(b []byte) ([]byte, bool) {
	if len(b) < 1+4+4 || b[0] != recordVersion {
		return nil, false
	}
	n := binary.BigEndian.Uint32(b[1:5])
	if uint64(len(b)) != 1+4+uint64(n)+4 {
		return nil, false
	}
	body := b[5 : 5+n]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	crc := crc32.Update(0, castagnoli, b[:1])
	crc = crc32.Update(crc, castagnoli, body)
	if crc != expect {
		return nil, false
	}
	return append([]byte(nil), body...), true
}

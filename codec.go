package snkv

import (
	"encoding/binary"
	"hash/fnv"
)

// encodeCell encodes a user key/value pair into the single blob payload
// stored as a data CF's cell: [key_len(4 BE) | key | value]. The key is
// carried inside the payload even though the bbolt bucket key is also the
// user key — this keeps the on-disk cell shape identical to what a
// blob-keyed B-tree (the pager this core was designed against) would
// store, and keeps decodeCellKeyLen/offset math meaningful.
func encodeCell(key, value []byte) []byte {
	buf := make([]byte, 4+len(key)+len(value))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(key)))
	copy(buf[4:4+len(key)], key)
	copy(buf[4+len(key):], value)
	return buf
}

// decodeCellKeyLen reads the 4-byte key-length prefix of a cell payload.
func decodeCellKeyLen(payload []byte) (int, error) {
	if len(payload) < 4 {
		return 0, ErrCorrupt
	}
	n := int(binary.BigEndian.Uint32(payload[0:4]))
	if n < 0 || 4+n > len(payload) {
		return 0, ErrCorrupt
	}
	return n, nil
}

// decodeCell splits a cell payload back into its key and value halves.
func decodeCell(payload []byte) (key, value []byte, err error) {
	n, err := decodeCellKeyLen(payload)
	if err != nil {
		return nil, nil, err
	}
	key = payload[4 : 4+n]
	value = payload[4+n:]
	return key, value, nil
}

// encodeBE64 encodes a TTL timestamp (absolute Unix-ms) big-endian. All
// on-disk integers are big-endian; the expiry index's ordering depends on
// this.
func encodeBE64(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

// decodeBE64 decodes a big-endian 64-bit TTL timestamp.
func decodeBE64(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, ErrCorrupt
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// encodeBE32 / decodeBE32 encode the small 32-bit fields used by the CF
// catalog (name length, root/serial id) and the header "meta" slots.
func encodeBE32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return buf
}

func decodeBE32(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, ErrCorrupt
	}
	return binary.BigEndian.Uint32(b), nil
}

// fnv1aRowid hashes a CF name into a positive rowid for the metadata
// B-tree, escaping a zero result to 1 the way the spec requires.
func fnv1aRowid(name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	sum := h.Sum64() & 0x7fffffffffffffff // mask positive
	if sum == 0 {
		sum = 1
	}
	return sum
}

// encodeRowid encodes a rowid big-endian so bbolt's natural byte-key
// ordering also orders the metadata table by rowid; ListCF walks the
// catalog in this order, so it returns names in hash order.
func encodeRowid(rowid uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, rowid)
	return buf
}

// maxMetaProbes is the linear-probe collision bound for the CF catalog.
const maxMetaProbes = 64

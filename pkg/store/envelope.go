package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

var (
	// ErrUnknownVersion means the stored payload was written by a codec version this build cannot read.
	ErrUnknownVersion = errors.New("unknown codec version")
	// ErrCorrupt means the envelope is truncated, has a bad magic or fails its checksum.
	ErrCorrupt = errors.New("corrupt store envelope")
)

var magic = []byte("SGv")

const checksumSize = 8

// sealEnvelope frames a payload as: magic, uvarint version, payload, xxhash64 of everything before it.
func sealEnvelope(version uint64, payload []byte) []byte {
	buf := make([]byte, 0, len(magic)+binary.MaxVarintLen64+len(payload)+checksumSize)
	buf = append(buf, magic...)
	buf = binary.AppendUvarint(buf, version)
	buf = append(buf, payload...)
	return binary.LittleEndian.AppendUint64(buf, xxhash.Sum64(buf))
}

// openEnvelope validates the frame and returns the version tag and payload.
func openEnvelope(data []byte) (uint64, []byte, error) {
	if len(data) < len(magic)+1+checksumSize || !bytes.HasPrefix(data, magic) {
		return 0, nil, fmt.Errorf("%w: bad header", ErrCorrupt)
	}

	body := data[:len(data)-checksumSize]
	sum := binary.LittleEndian.Uint64(data[len(data)-checksumSize:])
	if xxhash.Sum64(body) != sum {
		return 0, nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	version, n := binary.Uvarint(body[len(magic):])
	if n <= 0 {
		return 0, nil, fmt.Errorf("%w: bad version tag", ErrCorrupt)
	}
	return version, body[len(magic)+n:], nil
}

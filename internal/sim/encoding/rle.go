// Package encoding packs cost grid cells for the observer feed.
package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodeRLE encodes a sequence of cell values into base64(varint pairs).
// The pairs are (value, run_len) repeated.
func EncodeRLE(cells []uint8) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(cells) {
		v := cells[i]
		run := 1
		for j := i + 1; j < len(cells) && cells[j] == v; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(v))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeRLE is the inverse of EncodeRLE. Output longer than limit is an error.
func DecodeRLE(b64 string, limit int) ([]uint8, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []uint8
	for i := 0; i < len(raw); {
		v, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if v > 0xFF {
			return nil, fmt.Errorf("cell value too large: %d", v)
		}
		if run > uint64(limit-len(out)) {
			return nil, fmt.Errorf("decoded length exceeds %d", limit)
		}
		for k := 0; k < int(run); k++ {
			out = append(out, uint8(v))
		}
	}
	return out, nil
}

package index

import (
	"encoding/binary"
	"math"
)

// encodeVector serialises a float32 slice to a little-endian byte blob.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector deserialises a little-endian byte blob of dim float32 values.
// ok is false when the blob has the wrong length.
func decodeVector(b []byte, dim int) (v []float32, ok bool) {
	if len(b) != dim*4 {
		return nil, false
	}
	v = make([]float32, dim)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, true
}

// Package digestcodec writes fixed-layout values into a running hash.
package digestcodec

import (
	"encoding/binary"
	"math"
)

type Writer interface {
	Write(p []byte) (n int, err error)
}

func WriteU64(w Writer, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.Write(tmp[:])
}

func WriteI64(w Writer, tmp *[8]byte, v int64) {
	WriteU64(w, tmp, uint64(v))
}

// WriteF64 writes the IEEE bits of v, with every NaN folded to one pattern.
func WriteF64(w Writer, tmp *[8]byte, v float64) {
	if math.IsNaN(v) {
		v = math.NaN()
	}
	WriteU64(w, tmp, math.Float64bits(v))
}

// WriteString writes a length prefix and the bytes, so adjacent strings
// cannot run together.
func WriteString(w Writer, tmp *[8]byte, s string) {
	WriteU64(w, tmp, uint64(len(s)))
	w.Write([]byte(s))
}

func WriteBytes(w Writer, tmp *[8]byte, b []byte) {
	WriteU64(w, tmp, uint64(len(b)))
	w.Write(b)
}

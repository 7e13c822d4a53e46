package mathx

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// HashBytes folds b into a seeded 64-bit hash, eight bytes at a time. The
// length is mixed in so that trailing zero bytes change the result.
func HashBytes(seed int64, b []byte) uint64 {
	h := mix64(uint64(seed) ^ uint64(len(b))*0xc2b2ae3d27d4eb4f)
	for len(b) > 0 {
		var w uint64
		n := min(len(b), 8)
		for i := 0; i < n; i++ {
			w |= uint64(b[i]) << (8 * i)
		}
		h = mix64(h ^ w)
		b = b[n:]
	}
	return h
}

// Hash2 hashes a cell (x, z) under a seed.
func Hash2(seed uint64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	v := seed ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

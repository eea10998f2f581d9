package core

// FNV-1a 64-bit helpers used wherever the sim needs a deterministic roll
// derived from seed + tick, so replays stay digest-stable.

const (
	fnvOffset uint64 = 1469598103934665603
	fnvPrime  uint64 = 1099511628211
)

func fnvMix(h, v uint64) uint64 {
	for i := 0; i < 8; i++ {
		h ^= (v >> (8 * i)) & 0xff
		h *= fnvPrime
	}
	return h
}

// Hash2 folds two ints into a deterministic 64-bit value.
func Hash2(seed int64, a, b int) uint64 {
	h := fnvMix(fnvOffset, uint64(seed))
	h = fnvMix(h, uint64(int64(a)))
	return fnvMix(h, uint64(int64(b)))
}

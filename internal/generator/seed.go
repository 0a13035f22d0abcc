package generator

import "hash/fnv"

// seedFromDeviceID derives a deterministic PRNG seed from a device id,
// mirroring original_source/src/data_patterns/industrial_patterns.py's
// `np.random.RandomState(hash(device_id) % 2**32)` (spec.md Design Note,
// testable property 6: "same device id plus same tick sequence produces
// the same generated values").
func seedFromDeviceID(deviceID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(deviceID))
	return int64(h.Sum64() & 0x7fffffff)
}

package internal

// BoolHash returns a hash value for the given Boolean value.
func BoolHash(b bool) uint64 {
	if b {
		return (1 << 35) - 1
	}
	return ((1 << 29) - 1) << 35
}

// StringHash returns a hash value for the given string value.
func StringHash(s string) (hash uint64) {
	// DJBX33A
	hash = 5381
	for i := 0; i < len(s); i++ {
		hash = ((hash << 5) + hash) + uint64(s[i])
	}
	return
}

// CombineHash mixes two hash values in an order-dependent way.
func CombineHash(h1, h2 uint64) uint64 {
	return h1 ^ (h2 + 0x9e3779b97f4a7c15 + (h1 << 6) + (h1 >> 2))
}

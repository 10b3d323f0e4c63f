package math

// IsPowerOf2 reports whether n is a positive power of two.
func IsPowerOf2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Log2 returns the base-2 logarithm of n (assuming n is a power of 2).
func Log2(n int) int {
	result := 0

	for n > 1 {
		n >>= 1
		result++
	}

	return result
}

// Mirror returns the index of the cell reflected through the grid origin,
// i.e. ((n - i) mod n). It maps the wavevector of a centered spectrum to
// its negation.
func Mirror(i, n int) int {
	return (n - i) % n
}

// CheckerSign returns (-1)^(x+z). Multiplying the inverse transform of a
// spectrum centered at n/2 by this sign shifts it back to the origin.
func CheckerSign(x, z int) float32 {
	if (x+z)&1 == 0 {
		return 1
	}

	return -1
}

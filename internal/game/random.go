package game

import "github.com/valyala/fastrand"

// Rand is the source of randomness for starting players, letters and turn times.
type Rand interface {
	// Intn returns a value in [0, n). n must be positive.
	Intn(n int) int
}

type fastRand struct{}

func (fastRand) Intn(n int) int {
	return int(fastrand.Uint32n(uint32(n)))
}

// DefaultRand is safe for concurrent use.
var DefaultRand Rand = fastRand{}

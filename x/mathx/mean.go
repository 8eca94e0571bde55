package mathx

import "golang.org/x/exp/constraints"

// Number is any integer or float.
type Number interface {
	constraints.Integer | constraints.Float
}

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean[T Number](xs []T) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += float64(x)
	}
	return sum / float64(len(xs))
}

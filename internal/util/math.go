package util

func Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// SumNonNegative adds values, treating negatives as zero.
func SumNonNegative(values []int) int {
	total := 0
	for _, v := range values {
		total += Max(v, 0)
	}
	return total
}

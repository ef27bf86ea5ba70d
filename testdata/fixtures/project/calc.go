package calc

// add returns the sum of two integers.
func add(a, b int) int {
	return a + b
}

func mul(a, b int) int {
	return a * b
}

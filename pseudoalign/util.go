package pseudoalign

func min(x, y int) int {
	if x < y {
		return x
	}
	return y
}

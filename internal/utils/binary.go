package utils

// BinarySniffLength is the number of leading bytes inspected by IsBinary.
const BinarySniffLength = 512

// IsBinary reports whether the first BinarySniffLength bytes contain a null byte.
func IsBinary(data []byte) bool {
	limit := len(data)
	if limit > BinarySniffLength {
		limit = BinarySniffLength
	}
	for index := 0; index < limit; index++ {
		if data[index] == 0 {
			return true
		}
	}
	return false
}

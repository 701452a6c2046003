package utils

import "encoding/binary"

// Integer constraint for supported integer types
type Integer interface {
	~uint16 | ~int16 | ~uint32 | ~int32 | ~uint64 | ~int64
}

// Float constraint for supported float types
type Float interface {
	~float32 | ~float64
}

// FromBytes converts byte slice to integer (big-endian bytes, big-endian words)
func FromBytes[T Integer](data []byte) T {
	var result T
	switch any(result).(type) {
	case uint16:
		if len(data) >= 2 {
			return T(binary.BigEndian.Uint16(data))
		}
	case int16:
		if len(data) >= 2 {
			return T(int16(binary.BigEndian.Uint16(data)))
		}
	case uint32:
		if len(data) >= 4 {
			return T(binary.BigEndian.Uint32(data))
		}
	case int32:
		if len(data) >= 4 {
			return T(int32(binary.BigEndian.Uint32(data)))
		}
	case uint64:
		if len(data) >= 8 {
			return T(binary.BigEndian.Uint64(data))
		}
	case int64:
		if len(data) >= 8 {
			return T(int64(binary.BigEndian.Uint64(data)))
		}
	}
	return 0
}

// Scale applies a scale factor to convert integer to float
func Scale[T Integer, F Float](value T, scale F) F {
	return F(value) * scale
}

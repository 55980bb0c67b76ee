package engine

import "encoding/binary"

// EncodeRecord and DecodeRecord expose the persistence wire format to
// callers outside this package (the CLI front ends replay a record read
// from a file or a crash log, which arrives as raw bytes).
func EncodeRecord(words []uint64) []byte { return wordsToBytes(words) }
func DecodeRecord(b []byte) []uint64     { return bytesToWords(b) }

// wordsToBytes encodes a word record as big-endian 8-byte groups, with no
// framing or length prefix: the record length is implicit in len(b)/8.
func wordsToBytes(words []uint64) []byte {
	buf := make([]byte, 8*len(words))
	for i, w := range words {
		binary.BigEndian.PutUint64(buf[i*8:], w)
	}
	return buf
}

// bytesToWords is the inverse of wordsToBytes. A trailing partial word (len(b)
// not a multiple of 8) is silently dropped rather than treated as an error.
func bytesToWords(b []byte) []uint64 {
	n := len(b) / 8
	words := make([]uint64, n)
	for i := 0; i < n; i++ {
		words[i] = binary.BigEndian.Uint64(b[i*8 : i*8+8])
	}
	return words
}

func wordsEqual(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// wordsLess is the lexicographic order used to validate shrink candidates;
// it assumes len(a) == len(b), which every caller checks first.
func wordsLess(a, b []uint64) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func startsWith(full, prefix []uint64) bool {
	if len(prefix) > len(full) {
		return false
	}
	for i, v := range prefix {
		if full[i] != v {
			return false
		}
	}
	return true
}

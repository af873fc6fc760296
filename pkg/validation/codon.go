package validation

import "strings"

// Standard genetic code, codons ordered TCAG.
const codonTable = "FFLLSSSSYY**CC*WLLLLPPPPHHQQRRRRIIIMTTTTNNKKSSRRVVVVAAAADDEEGGGG"

func baseIndex(b byte) int {
	switch b {
	case 'T', 'U':
		return 0
	case 'C':
		return 1
	case 'A':
		return 2
	case 'G':
		return 3
	default:
		return -1
	}
}

func translateCodon(c string) byte {
	i, j, k := baseIndex(c[0]), baseIndex(c[1]), baseIndex(c[2])
	if i < 0 || j < 0 || k < 0 {
		return 'X'
	}
	return codonTable[i*16+j*4+k]
}

func isStop(c string) bool {
	return translateCodon(c) == '*'
}

// ReverseComplement of an upper-case nucleotide sequence.
func ReverseComplement(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		var c byte
		switch s[i] {
		case 'A':
			c = 'T'
		case 'T', 'U':
			c = 'A'
		case 'C':
			c = 'G'
		case 'G':
			c = 'C'
		default:
			c = 'N'
		}
		out[len(s)-1-i] = c
	}
	return string(out)
}

// Translate reads s in frame (+1..+3 forward, -1..-3 on the reverse strand).
// Frame 0 is treated as +1.
func Translate(s string, frame int) string {
	s = strings.ToUpper(s)
	if frame < 0 {
		s = ReverseComplement(s)
		frame = -frame
	}
	if frame == 0 {
		frame = 1
	}
	var b strings.Builder
	for i := frame - 1; i+3 <= len(s); i += 3 {
		b.WriteByte(translateCodon(s[i : i+3]))
	}
	return b.String()
}

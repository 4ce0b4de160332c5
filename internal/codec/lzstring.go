package codec

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

// uriSafeAlphabet is the 6-bit alphabet of LZ-string's URI component encoding.
const uriSafeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+-$"

// compressURI compresses s the way LZString.compressToEncodedURIComponent does.
func compressURI(s string) string {
	if s == "" {
		return ""
	}
	w := &bitWriter{bitsPerChar: 6}
	compress(utf16.Encode([]rune(s)), w)
	return w.String()
}

// decompressURI reverses compressURI.
func decompressURI(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty input")
	}
	s = strings.ReplaceAll(s, " ", "+")

	values := make([]int, len(s))
	for i := 0; i < len(s); i++ {
		idx := strings.IndexByte(uriSafeAlphabet, s[i])
		if idx < 0 {
			return "", fmt.Errorf("invalid symbol %q at %d", s[i], i)
		}
		values[i] = idx
	}

	units, err := decompress(values, 32)
	if err != nil {
		return "", err
	}
	return string(utf16.Decode(units)), nil
}

type bitWriter struct {
	bitsPerChar int
	val         int
	pos         int
	out         strings.Builder
}

// write emits the low n bits of value, least significant first.
func (w *bitWriter) write(value, n int) {
	for i := 0; i < n; i++ {
		w.val = (w.val << 1) | (value & 1)
		if w.pos == w.bitsPerChar-1 {
			w.pos = 0
			w.out.WriteByte(uriSafeAlphabet[w.val])
			w.val = 0
		} else {
			w.pos++
		}
		value >>= 1
	}
}

// flush pads the last symbol with zero bits.
func (w *bitWriter) flush() {
	for {
		w.val <<= 1
		if w.pos == w.bitsPerChar-1 {
			w.out.WriteByte(uriSafeAlphabet[w.val])
			return
		}
		w.pos++
	}
}

func (w *bitWriter) String() string {
	return w.out.String()
}

// unitKey encodes a UTF-16 sequence as a map key, two bytes per unit.
func unitKey(prefix string, u uint16) string {
	return prefix + string([]byte{byte(u >> 8), byte(u)})
}

func firstUnit(key string) uint16 {
	return uint16(key[0])<<8 | uint16(key[1])
}

func compress(input []uint16, w *bitWriter) {
	dictionary := make(map[string]int)
	toCreate := make(map[string]bool)
	enlargeIn := 2
	dictSize := 3
	numBits := 2
	cw := ""

	enlarge := func() {
		enlargeIn--
		if enlargeIn == 0 {
			enlargeIn = 1 << numBits
			numBits++
		}
	}

	emit := func(key string) {
		if toCreate[key] {
			u := firstUnit(key)
			if u < 256 {
				w.write(0, numBits)
				w.write(int(u), 8)
			} else {
				w.write(1, numBits)
				w.write(int(u), 16)
			}
			enlarge()
			delete(toCreate, key)
		} else {
			w.write(dictionary[key], numBits)
		}
		enlarge()
	}

	for _, u := range input {
		c := unitKey("", u)
		if _, ok := dictionary[c]; !ok {
			dictionary[c] = dictSize
			dictSize++
			toCreate[c] = true
		}

		wc := cw + c
		if _, ok := dictionary[wc]; ok {
			cw = wc
			continue
		}
		emit(cw)
		dictionary[wc] = dictSize
		dictSize++
		cw = c
	}

	if cw != "" {
		emit(cw)
	}

	w.write(2, numBits)
	w.flush()
}

type bitReader struct {
	values     []int
	resetValue int
	val        int
	position   int
	index      int
}

func (r *bitReader) next(i int) int {
	if i < len(r.values) {
		return r.values[i]
	}
	return 0
}

// read consumes n bits, least significant first.
func (r *bitReader) read(n int) int {
	bits := 0
	for power := 1; power != 1<<n; power <<= 1 {
		resb := r.val & r.position
		r.position >>= 1
		if r.position == 0 {
			r.position = r.resetValue
			r.val = r.next(r.index)
			r.index++
		}
		if resb > 0 {
			bits |= power
		}
	}
	return bits
}

func decompress(values []int, resetValue int) ([]uint16, error) {
	r := &bitReader{values: values, resetValue: resetValue, position: resetValue, index: 1}
	r.val = r.next(0)

	dictionary := [][]uint16{nil, nil, nil}
	enlargeIn := 4
	numBits := 3

	var c []uint16
	switch r.read(2) {
	case 0:
		c = []uint16{uint16(r.read(8))}
	case 1:
		c = []uint16{uint16(r.read(16))}
	case 2:
		return nil, nil
	default:
		return nil, fmt.Errorf("corrupt stream header")
	}
	dictionary = append(dictionary, c)
	w := c
	result := append([]uint16(nil), c...)

	for {
		if r.index > len(values) {
			return nil, fmt.Errorf("truncated stream")
		}

		code := r.read(numBits)
		switch code {
		case 0:
			dictionary = append(dictionary, []uint16{uint16(r.read(8))})
			code = len(dictionary) - 1
			enlargeIn--
		case 1:
			dictionary = append(dictionary, []uint16{uint16(r.read(16))})
			code = len(dictionary) - 1
			enlargeIn--
		case 2:
			return result, nil
		}

		if enlargeIn == 0 {
			enlargeIn = 1 << numBits
			numBits++
		}

		var entry []uint16
		switch {
		case code < len(dictionary) && dictionary[code] != nil:
			entry = dictionary[code]
		case code == len(dictionary):
			entry = append(append([]uint16(nil), w...), w[0])
		default:
			return nil, fmt.Errorf("corrupt stream: code %d", code)
		}
		result = append(result, entry...)

		dictionary = append(dictionary, append(append([]uint16(nil), w...), entry[0]))
		enlargeIn--

		w = entry

		if enlargeIn == 0 {
			enlargeIn = 1 << numBits
			numBits++
		}
	}
}

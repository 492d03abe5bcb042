package archive

import (
	"encoding/ascii85"
	"encoding/base32"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// Codec converts binary payloads to and from their inline text form.
type Codec struct {
	Decode func(string) ([]byte, error)
	Encode func([]byte) string
}

// DefaultEncoding is the data-encoding used for inline binary payloads.
const DefaultEncoding = "base64"

// DefaultCodecs returns the built-in data-encoding codecs.
func DefaultCodecs() map[string]Codec {
	return map[string]Codec{
		"base16": {
			Decode: hex.DecodeString,
			Encode: func(b []byte) string { return strings.ToUpper(hex.EncodeToString(b)) },
		},
		"base32": {
			Decode: base32.StdEncoding.DecodeString,
			Encode: base32.StdEncoding.EncodeToString,
		},
		"base64": {
			Decode: base64.StdEncoding.DecodeString,
			Encode: base64.StdEncoding.EncodeToString,
		},
		"base64_url": {
			Decode: base64.URLEncoding.DecodeString,
			Encode: base64.URLEncoding.EncodeToString,
		},
		"ascii85": {Decode: decodeASCII85, Encode: encodeASCII85},
		"base85":  {Decode: decodeBase85, Encode: encodeBase85},
	}
}

func decodeASCII85(s string) ([]byte, error) {
	dst := make([]byte, 4*len(s)+4)
	n, _, err := ascii85.Decode(dst, []byte(s), true)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

func encodeASCII85(b []byte) string {
	dst := make([]byte, ascii85.MaxEncodedLen(len(b)))
	return string(dst[:ascii85.Encode(dst, b)])
}

const b85Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"abcdefghijklmnopqrstuvwxyz!#$%&()*+-;<=>?@^_`{|}~"

var b85Index = func() [256]int {
	var idx [256]int
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(b85Alphabet); i++ {
		idx[b85Alphabet[i]] = i
	}
	return idx
}()

// decodeBase85 decodes the RFC 1924 alphabet without framing.
func decodeBase85(s string) ([]byte, error) {
	padding := (5 - len(s)%5) % 5
	s += strings.Repeat("~", padding)
	out := make([]byte, 0, len(s)/5*4)
	for i := 0; i < len(s); i += 5 {
		var acc uint64
		for j := 0; j < 5; j++ {
			c := b85Index[s[i+j]]
			if c < 0 {
				return nil, fmt.Errorf("bad base85 character at position %d", i+j)
			}
			acc = acc*85 + uint64(c)
		}
		if acc > math.MaxUint32 {
			return nil, fmt.Errorf("base85 overflow in hunk starting at byte %d", i)
		}
		out = binary.BigEndian.AppendUint32(out, uint32(acc))
	}
	return out[:len(out)-padding], nil
}

func encodeBase85(b []byte) string {
	padding := (4 - len(b)%4) % 4
	buf := append(append([]byte{}, b...), make([]byte, padding)...)
	out := make([]byte, 0, len(buf)/4*5)
	for i := 0; i < len(buf); i += 4 {
		acc := binary.BigEndian.Uint32(buf[i:])
		var chunk [5]byte
		for j := 4; j >= 0; j-- {
			chunk[j] = b85Alphabet[acc%85]
			acc /= 85
		}
		out = append(out, chunk[:]...)
	}
	return string(out[:len(out)-padding])
}

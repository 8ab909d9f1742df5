package helpers

import (
	"encoding/hex"
	"strings"
)

func MustHex(s string) []byte {
	b, err := hex.DecodeString(strings.Replace(s, " ", "", -1))
	if err != nil {
		panic(err)
	}
	return b
}

// HexSpaced formats bytes as "01 02 0a", the way frames are dumped in logs.
func HexSpaced(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	const digits = "0123456789abcdef"
	out := make([]byte, 0, len(b)*3-1)
	for i, x := range b {
		if i != 0 {
			out = append(out, ' ')
		}
		out = append(out, digits[x>>4], digits[x&0x0f])
	}
	return string(out)
}

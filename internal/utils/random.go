package utils

import (
	"crypto/rand"
	"errors"
	"fmt"
)

// RandomString returns n characters drawn uniformly from charset using
// crypto/rand. Bytes that do not index into charset are discarded and
// redrawn, so every character is equally likely.
func RandomString(n int, charset string) (string, error) {
	if n < 0 {
		return "", errors.New("utils: negative length")
	}
	if len(charset) == 0 || len(charset) > 256 {
		return "", errors.New("utils: charset must hold 1..256 bytes")
	}

	out := make([]byte, 0, n)
	buf := make([]byte, 16)

	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("utils: read random: %w", err)
		}
		for _, b := range buf {
			if int(b) >= len(charset) {
				continue
			}
			out = append(out, charset[b])
			if len(out) == n {
				break
			}
		}
	}

	return string(out), nil
}

package utils

import (
	"fmt"

	"github.com/twmb/murmur3"
)

// HashString returns a cheap content checksum, recorded next to every stored
// artifact so consumers can detect truncated uploads.
func HashString(s string) uint64 {
	hash := murmur3.New64()
	_, err := hash.Write([]byte(s))
	if err != nil {
		panic(err)
	}
	return hash.Sum64()
}

func ChecksumString(s string) string {
	return fmt.Sprintf("%016x", HashString(s))
}

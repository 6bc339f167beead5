// Package refcode issues the short external codes shown to users for
// transactions and moderated requests.
package refcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Alphabet omits 0, O, 1, I and L so codes survive being read aloud.
const Alphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// Length is the number of characters in a generated code.
const Length = 10

var alphabetSize = big.NewInt(int64(len(Alphabet)))

// Generator produces external codes.
type Generator interface {
	New() (string, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func() (string, error)

// New implements Generator.
func (f GeneratorFunc) New() (string, error) {
	return f()
}

// Random draws codes from crypto/rand.
var Random Generator = GeneratorFunc(New)

// New returns a fresh random code.
func New() (string, error) {
	var b strings.Builder
	b.Grow(Length)
	for i := 0; i < Length; i++ {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("generate reference code: %w", err)
		}
		b.WriteByte(Alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Normalize trims whitespace and upper-cases user input before matching.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether the normalized code could have been issued by New.
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

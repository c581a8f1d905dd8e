package common

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
)

const base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

var (
	sixty2     = big.NewInt(62)
	codeLimit  = big.NewInt(1_000_000)
	randReader = rand.Reader
)

// NewOpaqueID returns 128 random bits encoded as a 22-character base62 string,
// left-padded with '0'.
func NewOpaqueID() (string, error) {
	b := make([]byte, 16)
	if _, err := randReader.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return encodeBase62(b), nil
}

func encodeBase62(b []byte) string {
	n := new(big.Int).SetBytes(b)
	mod := new(big.Int)

	out := make([]byte, 0, OpaqueIDLength)
	for n.Sign() > 0 {
		n.DivMod(n, sixty2, mod)
		out = append(out, base62Alphabet[mod.Int64()])
	}
	for len(out) < OpaqueIDLength {
		out = append(out, '0')
	}

	// digits were produced least significant first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

// NewVerificationCode returns a uniformly random 6-digit decimal code.
func NewVerificationCode() (string, error) {
	n, err := rand.Int(randReader, codeLimit)
	if err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// IsValidEmail reports whether s is a bare RFC 5322 address without a display name.
func IsValidEmail(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Name == "" && addr.Address == s && strings.Contains(s[strings.LastIndex(s, "@"):], ".")
}

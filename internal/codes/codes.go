package codes

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Alphabet is the fixed character set for human-enterable codes.
// Visually ambiguous characters (0, O, 1, I, L) are excluded so a code
// printed on a small device display can be typed back without guesswork.
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	claimCodeLength = 6
	userCodeLength  = 8
)

// GenerateClaimCode returns a 6-character claim code, e.g. "XK42QN".
// Uniqueness is not guaranteed here; the registry retries on a
// uniqueness-constraint violation at insert time.
func GenerateClaimCode() (string, error) {
	return randomCode(claimCodeLength)
}

// GenerateUserCode returns an 8-character user code for the device
// authorization flow, stored without the display dash.
func GenerateUserCode() (string, error) {
	return randomCode(userCodeLength)
}

// FormatUserCode formats a user code for display ("ABCDEFGH" -> "ABCD-EFGH").
func FormatUserCode(code string) string {
	if len(code) != userCodeLength {
		return code
	}
	return code[:4] + "-" + code[4:]
}

// NormalizeUserCode undoes user formatting: uppercase, dashes and spaces
// removed. Accepts both "abcd-efgh" and "ABCDEFGH".
func NormalizeUserCode(code string) string {
	code = strings.ToUpper(code)
	code = strings.ReplaceAll(code, "-", "")
	return strings.ReplaceAll(code, " ", "")
}

func randomCode(length int) (string, error) {
	code := make([]byte, length)
	max := big.NewInt(int64(len(Alphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		code[i] = Alphabet[n.Int64()]
	}
	return string(code), nil
}

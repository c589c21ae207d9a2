package totp

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const BackupCodeCount = 8

// GenerateBackupCodes returns BackupCodeCount codes of eight upper-case hex characters formatted XXXX-XXXX.
func GenerateBackupCodes() ([]string, error) {
	codes := make([]string, 0, BackupCodeCount)
	buf := make([]byte, 4)

	for i := 0; i < BackupCodeCount; i++ {
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to read random bytes: %w", err)
		}
		code := strings.ToUpper(hex.EncodeToString(buf))
		codes = append(codes, code[:4]+"-"+code[4:])
	}

	return codes, nil
}

// NormalizeBackupCode strips separators and whitespace and upper-cases the rest.
func NormalizeBackupCode(code string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', ' ', '\t':
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(code)))
}

// VerifyBackupCode returns the first stored code equal to submitted after normalization.
// stored is never modified; removing the match is the caller's job.
func VerifyBackupCode(submitted string, stored []string) (string, bool) {
	want := NormalizeBackupCode(submitted)
	if want == "" {
		return "", false
	}

	for _, code := range stored {
		if NormalizeBackupCode(code) == want {
			return code, true
		}
	}
	return "", false
}

package utils

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
)

// PaymentCodeLength is the length of the per-payment unique code shown to
// customers and used to detect duplicate attempts.
const PaymentCodeLength = 8

// GenerateSecureCode generates a secure random code of the specified length.
// It returns a base32 encoded string (without padding) truncated to the
// desired length.
func GenerateSecureCode(length int) (string, error) {
	numBytes := (length*5 + 7) / 8 // Calculate the required number of bytes.
	randomBytes := make([]byte, numBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	code := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes)
	if len(code) > length {
		code = code[:length]
	}
	return code, nil
}

// GeneratePaymentCode returns a fresh 8-character payment code.
func GeneratePaymentCode() (string, error) {
	return GenerateSecureCode(PaymentCodeLength)
}

package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateHMAC returns the hex HMAC-SHA256 of data under secret
func GenerateHMAC(data []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyHMAC checks a hex signature produced by GenerateHMAC
func VerifyHMAC(data []byte, signature, secret string) error {
	want, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("failed to decode signature: %w", err)
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	if !hmac.Equal(h.Sum(nil), want) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"strings"
)

// SignBase64SHA256 returns base64(HMAC-SHA256(secret, body)).
func SignBase64SHA256(secret string, body []byte) string {
	return base64.StdEncoding.EncodeToString(sum(sha256.New, secret, body))
}

// SignHexSHA512 returns hex(HMAC-SHA512(secret, body)).
func SignHexSHA512(secret string, body []byte) string {
	return hex.EncodeToString(sum(sha512.New, secret, body))
}

// VerifyBase64SHA256 compares in constant time. An empty secret never verifies.
func VerifyBase64SHA256(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(got, sum(sha256.New, secret, body))
}

// VerifyHexSHA512 compares in constant time. An empty secret never verifies.
func VerifyHexSHA512(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(signature)))
	if err != nil {
		return false
	}
	return hmac.Equal(got, sum(sha512.New, secret, body))
}

func sum(h func() hash.Hash, secret string, body []byte) []byte {
	m := hmac.New(h, []byte(secret))
	m.Write(body)
	return m.Sum(nil)
}

package booking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignLink computes the signature for a subscriber's public link. The
// short link hash ties the signature to one subscriber, the path to one
// endpoint, so a leaked link cannot be replayed elsewhere.
func SignLink(secret, shortLinkHash, path string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(shortLinkHash))
	mac.Write([]byte(path))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyLink checks a presented signature in constant time.
func VerifyLink(secret, shortLinkHash, path, signature string) bool {
	want := SignLink(secret, shortLinkHash, path)
	return hmac.Equal([]byte(want), []byte(signature))
}

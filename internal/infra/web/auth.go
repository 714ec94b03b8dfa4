package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ReturnKey derives the URL fragment that authenticates the payment-passed
// callback for one payment. The abort callback deliberately goes without
// it: aborting is cheap to do many times and must not become a way to
// probe for the key.
func ReturnKey(secret string, paymentID int64) string {
	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "payment:%d", paymentID)
	return hex.EncodeToString(h.Sum(nil))[:32]
}

func VerifyReturnKey(secret string, paymentID int64, key string) bool {
	return hmac.Equal([]byte(ReturnKey(secret, paymentID)), []byte(key))
}

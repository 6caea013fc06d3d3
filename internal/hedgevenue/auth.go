package hedgevenue

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
)

// sign produces the API-Sign header value: HMAC-SHA512(path + SHA256(nonce +
// postData), base64-decoded apiSecret), base64-encoded. This is the
// standard private-endpoint signing scheme for the venue's REST API.
func sign(path, nonce, postData, apiSecret string) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(apiSecret)
	if err != nil {
		return "", fmt.Errorf("decode api secret: %w", err)
	}

	shaSum := sha256.Sum256([]byte(nonce + postData))

	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(path))
	mac.Write(shaSum[:])

	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

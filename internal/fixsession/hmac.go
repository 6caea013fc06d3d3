package fixsession

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// ComputeLogonSignature builds the Logon tag-554 value: base64(HMAC-SHA256)
// over the exact concatenation sendingTime∥msgType∥seqNum∥senderCompId∥
// targetCompId∥username, keyed by apiSecret. Every argument is the literal
// wire string (seqNum undecorated, e.g. "1", not zero-padded).
func ComputeLogonSignature(sendingTime, msgType, seqNum, senderCompID, targetCompID, username, apiSecret string) string {
	payload := sendingTime + msgType + seqNum + senderCompID + targetCompID + username
	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

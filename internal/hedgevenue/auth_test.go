package hedgevenue

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"testing"
)

func TestSignMatchesIndependentComputation(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("supersecretkey"))
	path := "/0/private/AddOrder"
	nonce := "1690000000000"
	postData := "nonce=1690000000000&pair=XBTUSD&type=buy"

	got, err := sign(path, nonce, postData, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	decoded, _ := base64.StdEncoding.DecodeString(secret)
	shaSum := sha256.Sum256([]byte(nonce + postData))
	mac := hmac.New(sha512.New, decoded)
	mac.Write([]byte(path))
	mac.Write(shaSum[:])
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if got != want {
		t.Fatalf("sign = %s, want %s", got, want)
	}
}

func TestSignRejectsInvalidBase64Secret(t *testing.T) {
	if _, err := sign("/path", "1", "body", "not-valid-base64!!!"); err == nil {
		t.Fatal("expected error for invalid base64 secret")
	}
}

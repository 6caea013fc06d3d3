package quote

import (
	"crypto/rand"
	"math/big"
	"sync/atomic"
)

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// clOrdIDGenerator produces short, URL-safe, session-unique client order
// ids prefixed with "Q" and bounded to 18 characters: a monotonic counter
// (guarantees uniqueness within the session) followed by a short random
// suffix (avoids leaking a predictable sequence to the venue).
type clOrdIDGenerator struct {
	counter uint64
}

func newClOrdIDGenerator() *clOrdIDGenerator {
	return &clOrdIDGenerator{}
}

func (g *clOrdIDGenerator) Next() string {
	n := atomic.AddUint64(&g.counter, 1)
	id := "Q" + encodeBase62(n) + randomSuffix(4)
	if len(id) > 18 {
		id = id[:18]
	}
	return id
}

func encodeBase62(n uint64) string {
	if n == 0 {
		return "0"
	}
	buf := make([]byte, 0, 11)
	for n > 0 {
		buf = append(buf, base62Alphabet[n%62])
		n /= 62
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

func randomSuffix(n int) string {
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(base62Alphabet))))
		if err != nil {
			out[i] = base62Alphabet[0]
			continue
		}
		out[i] = base62Alphabet[idx.Int64()]
	}
	return string(out)
}

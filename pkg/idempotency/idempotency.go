package idempotency

import (
	"net/http"
	"strings"
)

const Header = "Idempotency-Key"

const maxKeyLen = 128

func Key(r *http.Request) string {
	k := strings.TrimSpace(r.Header.Get(Header))
	if len(k) > maxKeyLen {
		return ""
	}
	return k
}

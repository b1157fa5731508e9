package idempotency

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	r := httptest.NewRequest("POST", "/sale-orders", nil)
	assert.Equal(t, "", Key(r))

	r.Header.Set(Header, "retry-1")
	assert.Equal(t, "retry-1", Key(r))

	// Oversized keys are ignored rather than truncated.
	r.Header.Set(Header, strings.Repeat("x", maxKeyLen+1))
	assert.Equal(t, "", Key(r))
}

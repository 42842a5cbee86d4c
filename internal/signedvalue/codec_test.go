package signedvalue

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestCodec(t *testing.T, now *time.Time) *Codec {
	t.Helper()
	codec, err := NewCodec([]byte("test-signing-secret"), WithClock(func() time.Time { return *now }))
	require.NoError(t, err)
	return codec
}

func TestNewCodecRequiresSecret(t *testing.T) {
	_, err := NewCodec(nil)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	now := fixedNow
	codec := newTestCodec(t, &now)

	for _, value := range []bool{true, false} {
		for _, ttl := range []int{1, 60, 300, 86400} {
			signed := codec.Sign(value, ttl)
			got, ok := codec.Verify(signed)
			require.True(t, ok, "signed=%s", signed)
			if value {
				assert.Equal(t, "true", got)
			} else {
				assert.Equal(t, "false", got)
			}
		}
	}
}

func TestSignFormat(t *testing.T) {
	now := fixedNow
	codec := newTestCodec(t, &now)

	parts := strings.Split(codec.Sign(true, 300), ".")
	require.Len(t, parts, 3)
	assert.Equal(t, "true", parts[0])
	assert.Equal(t, "1772366700", parts[1])
	assert.NotEmpty(t, parts[2])
}

func TestNonPositiveTTLIsExpired(t *testing.T) {
	now := fixedNow
	codec := newTestCodec(t, &now)

	for _, ttl := range []int{0, -1, -300} {
		_, ok := codec.Verify(codec.Sign(true, ttl))
		assert.False(t, ok, "ttl=%d", ttl)
	}
}

func TestVerifyAfterExpiry(t *testing.T) {
	now := fixedNow
	codec := newTestCodec(t, &now)

	signed := codec.Sign(true, 300)

	now = fixedNow.Add(300 * time.Second)
	_, ok := codec.Verify(signed)
	assert.True(t, ok, "value is still valid at its expiry second")

	now = fixedNow.Add(301 * time.Second)
	_, ok = codec.Verify(signed)
	assert.False(t, ok)
}

func TestVerifyDetectsTampering(t *testing.T) {
	now := fixedNow
	codec := newTestCodec(t, &now)
	signed := codec.Sign(false, 300)

	t.Run("value segment", func(t *testing.T) {
		valueEnd := strings.Index(signed, ".")
		for i := 0; i < valueEnd; i++ {
			b := []byte(signed)
			b[i] ^= 0x01
			_, ok := codec.Verify(string(b))
			assert.False(t, ok, "flipped index %d", i)
		}
	})

	t.Run("swapped value", func(t *testing.T) {
		forged := "true" + strings.TrimPrefix(signed, "false")
		_, ok := codec.Verify(forged)
		assert.False(t, ok)
	})

	t.Run("extended expiry", func(t *testing.T) {
		parts := strings.Split(signed, ".")
		forged := parts[0] + ".9999999999." + parts[2]
		_, ok := codec.Verify(forged)
		assert.False(t, ok)
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := NewCodec([]byte("another-secret"), WithClock(func() time.Time { return now }))
		require.NoError(t, err)
		_, ok := other.Verify(signed)
		assert.False(t, ok)
	})
}

func TestVerifyMalformed(t *testing.T) {
	now := fixedNow
	codec := newTestCodec(t, &now)

	for _, input := range []string{
		"",
		"true",
		"true.123",
		"true.123.sig.extra",
		"true.notanumber.sig",
		"true.9999999999.short",
	} {
		_, ok := codec.Verify(input)
		assert.False(t, ok, "input=%q", input)
	}
}

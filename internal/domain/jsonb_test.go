package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
)

func TestJSONBMapScan(t *testing.T) {
	t.Run("bytes", func(t *testing.T) {
		var m domain.JSONBMap
		require.NoError(t, m.Scan([]byte(`{"url":"https://example.com","limit":5}`)))
		assert.Equal(t, "https://example.com", m["url"])
		assert.Equal(t, float64(5), m["limit"])
	})

	t.Run("string", func(t *testing.T) {
		var m domain.JSONBMap
		require.NoError(t, m.Scan(`{"dry_run":true}`))
		assert.Equal(t, true, m["dry_run"])
	})

	t.Run("nil", func(t *testing.T) {
		var m domain.JSONBMap
		require.NoError(t, m.Scan(nil))
		assert.Nil(t, m)
	})

	t.Run("empty input", func(t *testing.T) {
		var m domain.JSONBMap
		require.NoError(t, m.Scan([]byte{}))
		assert.NotNil(t, m)
		assert.Empty(t, m)
	})

	t.Run("unsupported type", func(t *testing.T) {
		var m domain.JSONBMap
		assert.Error(t, m.Scan(42))
	})
}

func TestJSONBMapValue(t *testing.T) {
	t.Run("nil map stored as empty object", func(t *testing.T) {
		var m domain.JSONBMap
		v, err := m.Value()
		require.NoError(t, err)
		assert.Equal(t, []byte("{}"), v)
	})

	t.Run("round trip", func(t *testing.T) {
		in := domain.JSONBMap{"url": "https://example.com", "limit": float64(3)}
		v, err := in.Value()
		require.NoError(t, err)

		var out domain.JSONBMap
		require.NoError(t, out.Scan(v))
		assert.Equal(t, in, out)
	})
}

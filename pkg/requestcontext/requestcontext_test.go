package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "diyetlenio/pkg/domain-errors"
)

func TestPrincipal(t *testing.T) {
	t.Run("defaults to anonymous", func(t *testing.T) {
		ctx := context.Background()
		assert.Equal(t, Anonymous, Principal(ctx))
		assert.False(t, IsAuthenticated(ctx))
	})

	t.Run("empty principal is anonymous", func(t *testing.T) {
		ctx := WithPrincipal(context.Background(), "")
		assert.Equal(t, Anonymous, Principal(ctx))
	})

	t.Run("returns stored principal", func(t *testing.T) {
		ctx := WithPrincipal(context.Background(), "user:42")
		assert.Equal(t, "user:42", Principal(ctx))
		assert.True(t, IsAuthenticated(ctx))
	})
}

func TestRequirePrincipal(t *testing.T) {
	t.Run("anonymous yields authentication error", func(t *testing.T) {
		_, err := RequirePrincipal(context.Background())
		require.Error(t, err)
		assert.True(t, dErrors.HasKind(err, dErrors.KindAuthentication))
	})

	t.Run("authenticated returns principal", func(t *testing.T) {
		p, err := RequirePrincipal(WithPrincipal(context.Background(), "user:7"))
		require.NoError(t, err)
		assert.Equal(t, "user:7", p)
	})
}

func TestClientMetadata(t *testing.T) {
	ctx := WithClientMetadata(context.Background(), "1.2.3.4", "curl/8.0")
	assert.Equal(t, "1.2.3.4", ClientIP(ctx))
	assert.Equal(t, "curl/8.0", UserAgent(ctx))
	assert.Empty(t, ClientIP(context.Background()))
}

func TestTime(t *testing.T) {
	t.Run("returns injected time", func(t *testing.T) {
		fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		ctx := WithTime(context.Background(), fixed)
		assert.Equal(t, fixed, Now(ctx))
		got, ok := StartTime(ctx)
		assert.True(t, ok)
		assert.Equal(t, fixed, got)
	})

	t.Run("falls back to wall clock", func(t *testing.T) {
		before := time.Now()
		assert.False(t, Now(context.Background()).Before(before))
		_, ok := StartTime(context.Background())
		assert.False(t, ok)
	})
}

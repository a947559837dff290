package registry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter interface{ Greet() string }

type english struct{}

func (english) Greet() string { return "hello" }

func TestRegistry(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("greeter", english{}))

	t.Run("typed lookup", func(t *testing.T) {
		g, err := Get[greeter](r, "greeter")
		require.NoError(t, err)
		assert.Equal(t, "hello", g.Greet())
	})

	t.Run("duplicate name", func(t *testing.T) {
		assert.Error(t, r.Register("greeter", english{}))
	})

	t.Run("nil service", func(t *testing.T) {
		assert.Error(t, r.Register("nothing", nil))
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := Get[greeter](r, "missing")
		assert.ErrorContains(t, err, "not registered")
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := Get[fmt.Stringer](r, "greeter")
		assert.ErrorContains(t, err, "not the requested type")
		assert.Panics(t, func() { MustGet[fmt.Stringer](r, "greeter") })
	})

	assert.Equal(t, []string{"greeter"}, r.Names())
}

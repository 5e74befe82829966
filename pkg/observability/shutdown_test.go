package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShutdownManager(t *testing.T) {
	t.Run("runs steps in reverse order", func(t *testing.T) {
		sm := NewShutdownManager(NewLogger(ErrorLevel, &bytes.Buffer{}), time.Second)

		var order []string
		sm.Register("store", func(context.Context) error { order = append(order, "store"); return nil })
		sm.Register("server", func(context.Context) error { order = append(order, "server"); return nil })

		assert.NoError(t, sm.Shutdown())
		assert.Equal(t, []string{"server", "store"}, order)
	})

	t.Run("collects failures and keeps going", func(t *testing.T) {
		sm := NewShutdownManager(NewLogger(ErrorLevel, &bytes.Buffer{}), time.Second)

		ran := false
		boom := errors.New("boom")
		sm.Register("first", func(context.Context) error { ran = true; return nil })
		sm.Register("second", func(context.Context) error { return boom })

		err := sm.Shutdown()
		assert.ErrorIs(t, err, boom)
		assert.True(t, ran)
	})
}

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	assert.NotPanics(t, func() {
		defer RecoverPanic(logger, "test")
		panic("kaboom")
	})
	assert.Contains(t, buf.String(), "kaboom")

	var got error
	func() {
		defer RecoverPanicWithCallback(logger, "test", func(err error) { got = err })
		panic("again")
	}()
	assert.EqualError(t, got, "panic: again")
	assert.Nil(t, MustRecover(nil))
}

func TestInitOTelDisabled(t *testing.T) {
	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, NewLogger(ErrorLevel, &bytes.Buffer{}))
	assert.NoError(t, err)
	assert.Nil(t, providers)
	assert.NoError(t, providers.Shutdown(context.Background()))
}

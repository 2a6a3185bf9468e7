package editor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleveque/promo-composer/internal/layout"
	"github.com/fleveque/promo-composer/internal/render"
)

func newTestManager(max int) *Manager {
	logger := zap.NewNop()
	fonts := render.DefaultFonts()
	renderer := render.NewRenderer(fonts, render.NewDecoder(logger), nil, logger)
	return NewManager(layout.NewRegistry(fonts), renderer, 0, max, logger)
}

func TestManager_Lifecycle(t *testing.T) {
	m := newTestManager(0)
	defer m.CloseAll()

	id, surface, err := m.Create()
	require.NoError(t, err)
	assert.Len(t, id, 32)

	got, err := m.Get(id)
	require.NoError(t, err)
	assert.Same(t, surface, got)

	require.NoError(t, m.Delete(id))
	_, err = m.Get(id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Delete(id), ErrSessionNotFound)
}

func TestManager_Limit(t *testing.T) {
	m := newTestManager(2)
	defer m.CloseAll()

	for i := 0; i < 2; i++ {
		_, _, err := m.Create()
		require.NoError(t, err)
	}
	_, _, err := m.Create()
	assert.ErrorIs(t, err, ErrTooManySessions)
}

func TestManager_Expire(t *testing.T) {
	m := newTestManager(0)
	defer m.CloseAll()

	idle, _, err := m.Create()
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	fresh, _, err := m.Create()
	require.NoError(t, err)

	assert.Equal(t, 1, m.Expire(10*time.Millisecond))
	assert.Equal(t, 1, m.Len())

	_, err = m.Get(idle)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Get(fresh)
	assert.NoError(t, err)
}

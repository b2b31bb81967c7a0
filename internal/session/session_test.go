package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_SetGetDelete(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())
	assert.False(t, s.IsDirty())

	s.Set(KeyLoggedIn, "user-1")
	v, ok := s.Get(KeyLoggedIn)
	assert.True(t, ok)
	assert.Equal(t, "user-1", v)
	assert.True(t, s.IsDirty())

	s.Delete(KeyLoggedIn)
	_, ok = s.Get(KeyLoggedIn)
	assert.False(t, ok)
}

func TestSession_SetSameValueIsNotDirty(t *testing.T) {
	s := newSession("abc", map[string]string{KeyLoggedIn: "user-1"})

	s.Set(KeyLoggedIn, "user-1")
	s.Delete("missing")

	assert.False(t, s.IsDirty())
}

func TestSession_Pull(t *testing.T) {
	s := newSession("abc", map[string]string{KeyError: "boom"})

	v, ok := s.Pull(KeyError)
	assert.True(t, ok)
	assert.Equal(t, "boom", v)

	_, ok = s.Get(KeyError)
	assert.False(t, ok)
}

func TestSession_RegenerateKeepsValuesAndFirstOldID(t *testing.T) {
	s := newSession("original", map[string]string{KeyLoggedIn: "user-1"})

	require.NoError(t, s.Regenerate())
	require.NoError(t, s.Regenerate())

	assert.NotEqual(t, "original", s.ID())
	assert.Equal(t, "original", s.oldID)
	v, _ := s.Get(KeyLoggedIn)
	assert.Equal(t, "user-1", v)
}

func TestSession_ValuesIsACopy(t *testing.T) {
	s := newSession("abc", map[string]string{"a": "1"})

	values := s.Values()
	values["a"] = "2"

	v, _ := s.Get("a")
	assert.Equal(t, "1", v)
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	s := newSession("abc", nil)
	assert.Same(t, s, FromContext(NewContext(context.Background(), s)))
}

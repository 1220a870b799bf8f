package bridge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"spacebot/internal/spaceapi"
)

func TestCacheEvaluateIsIdempotent(t *testing.T) {
	states := []spaceapi.State{
		{},
		{Open: ptr(true)},
		{Open: ptr(false), Message: ptr("under construction")},
	}
	for _, s := range states {
		c := NewCache(spaceapi.State{Open: ptr(true), Message: ptr("seed")})
		require.True(t, c.Evaluate(s), "first evaluate of %s", s)
		require.False(t, c.Evaluate(s), "repeat evaluate of %s", s)
		require.True(t, c.Current().Equal(s))
	}
}

func TestCacheDistinctStatesBothChange(t *testing.T) {
	a := spaceapi.State{Open: ptr(true)}
	b := spaceapi.State{Open: ptr(true), Message: ptr("party")}

	for _, order := range [][2]spaceapi.State{{a, b}, {b, a}} {
		c := NewCache(spaceapi.State{Open: ptr(false)})
		require.True(t, c.Evaluate(order[0]))
		require.True(t, c.Evaluate(order[1]))
	}
}

func TestCacheDoesNotAliasCallerState(t *testing.T) {
	s := spaceapi.State{Open: ptr(true)}
	c := NewCache(spaceapi.State{})
	require.True(t, c.Evaluate(s))

	*s.Open = false
	require.True(t, *c.Current().Open)
}

package pathtree_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lactoserv/lactoserv/pathtree"
)

func TestTreePathMapExactMatch(t *testing.T) {
	m := pathtree.New[string]()
	require.NoError(t, m.Add(pathtree.NewHostnameKey("www.example.com"), "exact"))

	matches := m.Find(pathtree.NewHostnameKey("www.example.com"), false)
	require.Len(t, matches, 1)
	assert.Equal(t, "exact", matches[0].Value)
}

func TestTreePathMapWildcardMatch(t *testing.T) {
	m := pathtree.New[string]()
	require.NoError(t, m.Add(pathtree.NewHostnameKey("*.example.com"), "wild"))

	matches := m.Find(pathtree.NewHostnameKey("foo.example.com"), false)
	require.Len(t, matches, 1)
	assert.Equal(t, "wild", matches[0].Value)

	matches = m.Find(pathtree.NewHostnameKey("foo.bar.example.com"), false)
	require.Len(t, matches, 1)
	assert.Equal(t, "wild", matches[0].Value)
}

func TestTreePathMapExactBeatsWildcard(t *testing.T) {
	m := pathtree.New[string]()
	require.NoError(t, m.Add(pathtree.NewHostnameKey("*.example.com"), "wild"))
	require.NoError(t, m.Add(pathtree.NewHostnameKey("www.example.com"), "exact"))

	matches := m.Find(pathtree.NewHostnameKey("www.example.com"), false)
	require.Len(t, matches, 1)
	assert.Equal(t, "exact", matches[0].Value)
}

func TestTreePathMapWantAllOrdersMostSpecificFirst(t *testing.T) {
	m := pathtree.New[string]()
	require.NoError(t, m.Add(pathtree.NewURIKey("/*"), "root-wild"))
	require.NoError(t, m.Add(pathtree.NewURIKey("/a/*"), "a-wild"))
	require.NoError(t, m.Add(pathtree.NewURIKey("/a/b"), "exact"))

	matches := m.Find(pathtree.NewURIKey("/a/b"), true)
	require.Len(t, matches, 3)
	assert.Equal(t, "exact", matches[0].Value)
	assert.Equal(t, "a-wild", matches[1].Value)
	assert.Equal(t, "root-wild", matches[2].Value)
}

func TestTreePathMapNoMatch(t *testing.T) {
	m := pathtree.New[string]()
	require.NoError(t, m.Add(pathtree.NewHostnameKey("www.example.com"), "exact"))

	matches := m.Find(pathtree.NewHostnameKey("other.com"), false)
	assert.Empty(t, matches)
}

func TestTreePathMapDuplicateAddIsError(t *testing.T) {
	m := pathtree.New[string]()
	require.NoError(t, m.Add(pathtree.NewHostnameKey("www.example.com"), "a"))
	err := m.Add(pathtree.NewHostnameKey("www.example.com"), "b")
	assert.Error(t, err)
}

func TestTreePathMapZeroLengthWildcardMatchesAnything(t *testing.T) {
	m := pathtree.New[string]()
	require.NoError(t, m.Add(pathtree.NewURIKey("/*"), "catch-all"))

	matches := m.Find(pathtree.NewURIKey("/anything/deep/here"), false)
	require.Len(t, matches, 1)
	assert.Equal(t, "catch-all", matches[0].Value)
}

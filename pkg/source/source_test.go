package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOrdinal(t *testing.T) {
	lookup := func(props map[string]string) func(string) (string, bool) {
		return func(k string) (string, bool) {
			v, ok := props[k]
			return v, ok
		}
	}

	assert.Equal(t, 100, ResolveOrdinal(lookup(nil), 100))
	assert.Equal(t, 42, ResolveOrdinal(lookup(map[string]string{OrdinalKey: " 42 "}), 100))
	assert.Equal(t, 100, ResolveOrdinal(lookup(map[string]string{OrdinalKey: "high"}), 100))
}

func TestSortOrdersByOrdinalThenName(t *testing.T) {
	sources := []Source{
		NewMapSource("b", 100, nil),
		NewMapSource("low", 10, nil),
		NewMapSource("a", 100, nil),
		NewMapSource("top", 1, map[string]string{OrdinalKey: "900"}),
	}
	Sort(sources)

	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"top", "a", "b", "low"}, names)
}

func TestMapSource(t *testing.T) {
	s := NewMapSource("overrides", OverridesOrdinal, map[string]string{"a": "1"})
	require.NoError(t, s.Set("b", "2"))

	assert.Equal(t, []string{"a", "b"}, s.PropertyNames())
	assert.True(t, s.Delete("a"))
	_, ok := s.Value("a")
	assert.False(t, ok)
	assert.Equal(t, OverridesOrdinal, s.Ordinal())
}

func TestEnvNames(t *testing.T) {
	assert.Equal(t, []string{"server.http-port", "server_http_port", "SERVER_HTTP_PORT"}, EnvNames("server.http-port"))
	assert.Equal(t, []string{"PATH"}, EnvNames("PATH"))
	assert.Equal(t, []string{"home", "HOME"}, EnvNames("home"))
}

func TestEnvSourceLookupOrder(t *testing.T) {
	s := NewEnvSource(WithEnviron(map[string]string{
		"db_url":      "sanitised",
		"DB_URL":      "upper",
		"APP_TIMEOUT": "5s",
	}))

	v, ok := s.Value("db.url")
	require.True(t, ok)
	assert.Equal(t, "sanitised", v)

	v, ok = s.Value("app.timeout")
	require.True(t, ok)
	assert.Equal(t, "5s", v)

	_, ok = s.Value("missing.key")
	assert.False(t, ok)
	assert.Equal(t, EnvOrdinal, s.Ordinal())
}

func TestEnvSourcePrefixAndOrdinal(t *testing.T) {
	s := NewEnvSource(
		WithPrefix("APP_"),
		WithEnviron(map[string]string{"APP_A": "1", "OTHER": "2", "CONFIG_ORDINAL": "350"}),
	)

	assert.Equal(t, []string{"APP_A"}, s.PropertyNames())
	assert.Equal(t, 350, s.Ordinal())
}

func TestEnvSourceReadsProcessEnvironment(t *testing.T) {
	t.Setenv("CONFKIT_TEST_VALUE", "from-env")

	v, ok := NewEnvSource().Value("confkit.test.value")
	require.True(t, ok)
	assert.Equal(t, "from-env", v)
}

type countingSource struct {
	*MapSource
	ordinalCalls int
}

func (c *countingSource) Ordinal() int {
	c.ordinalCalls++
	return c.MapSource.Ordinal()
}

func TestSortReadsEachOrdinalOnce(t *testing.T) {
	counted := make([]*countingSource, 0, 8)
	sources := make([]Source, 0, 8)
	for i, name := range []string{"h", "g", "f", "e", "d", "c", "b", "a"} {
		c := &countingSource{MapSource: NewMapSource(name, i%3, nil)}
		counted = append(counted, c)
		sources = append(sources, c)
	}

	Sort(sources)

	for _, c := range counted {
		assert.Equal(t, 1, c.ordinalCalls, c.Name())
	}
	assert.Equal(t, "c", sources[0].Name())
}

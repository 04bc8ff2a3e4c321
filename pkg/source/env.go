package source

import (
	"os"
	"strings"
	"unicode"
)

// EnvSource exposes the process environment.
//
// A lookup for "server.http-port" tries, in order, the exact name
// "server.http-port", the sanitised name "server_http_port" (every
// non-alphanumeric character replaced by an underscore) and the upper-cased
// sanitised name "SERVER_HTTP_PORT".
type EnvSource struct {
	prefix  string
	ordinal int
	lookup  func(string) (string, bool)
	environ func() []string
}

// EnvOption configures an EnvSource.
type EnvOption func(*EnvSource)

// WithPrefix limits Properties and PropertyNames to variables starting with prefix.
// Value lookups are not affected.
func WithPrefix(prefix string) EnvOption {
	return func(s *EnvSource) {
		s.prefix = prefix
	}
}

// WithEnviron replaces the process environment, primarily for tests.
func WithEnviron(env map[string]string) EnvOption {
	return func(s *EnvSource) {
		s.lookup = func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		}
		s.environ = func() []string {
			out := make([]string, 0, len(env))
			for k, v := range env {
				out = append(out, k+"="+v)
			}
			return out
		}
	}
}

// NewEnvSource creates an environment source with the default ordinal of 300.
func NewEnvSource(opts ...EnvOption) *EnvSource {
	s := &EnvSource{
		ordinal: EnvOrdinal,
		lookup:  os.LookupEnv,
		environ: os.Environ,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *EnvSource) Name() string { return "env" }

func (s *EnvSource) Ordinal() int {
	return ResolveOrdinal(s.Value, s.ordinal)
}

func (s *EnvSource) Value(key string) (string, bool) {
	for _, candidate := range EnvNames(key) {
		if v, ok := s.lookup(candidate); ok {
			return v, true
		}
	}
	return "", false
}

func (s *EnvSource) Properties() map[string]string {
	out := make(map[string]string)
	for _, kv := range s.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		if s.prefix != "" && !strings.HasPrefix(name, s.prefix) {
			continue
		}
		out[name] = value
	}
	return out
}

func (s *EnvSource) PropertyNames() []string {
	return sortedKeys(s.Properties())
}

// EnvNames returns the distinct environment variable names probed for key.
func EnvNames(key string) []string {
	sanitised := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return '_'
	}, key)
	upper := strings.ToUpper(sanitised)

	names := []string{key}
	if sanitised != key {
		names = append(names, sanitised)
	}
	if upper != sanitised {
		names = append(names, upper)
	}
	return names
}

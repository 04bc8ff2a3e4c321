package tck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenenazirov/confkit/pkg/confkit"
	"github.com/eugenenazirov/confkit/pkg/provider"
)

func TestMain(m *testing.M) {
	provider.Register(provider.NewYAMLFileProvider(filepath.Join("testdata", "sample.yaml")))
	os.Exit(m.Run())
}

func TestConfigSourceProvider(t *testing.T) {
	cfg := confkit.GetConfig()

	value, err := cfg.Value("tck.config.test.sampleyaml.key1")
	require.NoError(t, err)
	assert.Equal(t, "yamlvalue1", value)
}

func TestConfigSourceProviderSourceIsListed(t *testing.T) {
	cfg := confkit.GetConfig()

	src, ok := cfg.Source("tck.config.test.sampleyaml.key2")
	require.True(t, ok)
	assert.Equal(t, "yaml:"+filepath.Join("testdata", "sample.yaml"), src.Name())
	assert.Contains(t, cfg.Sources(), src)
}

func TestMissingKeyIsReported(t *testing.T) {
	_, err := confkit.GetConfig().Value("tck.config.test.sampleyaml.missing")
	require.ErrorIs(t, err, confkit.ErrNoSuchElement)
}

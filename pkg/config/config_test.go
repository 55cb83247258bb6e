package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/DBSeek/pkg/core"
)

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, "trypsin", c.Digestion.Enzyme)
	assert.Equal(t, 5000, c.Batching.ChunkSize)
	assert.True(t, c.Batching.Decoys)
	assert.False(t, c.Batching.FilterDecoyCollisions)
	assert.Equal(t, core.PolicyFail, c.Policy.OnEmptyBatch)
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), *c)
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeSettings(t, `
digestion:
  enzyme: lys-c
  max_missed_cleavages: 2
conversion:
  precursor_mz:
    min: 350
batching:
  chunk_size: 100
policy:
  on_empty_batch: skip
filter:
  top_n: 12
  ion_types: y
`)
	c, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "lys-c", c.Digestion.Enzyme)
	assert.Equal(t, 2, c.Digestion.MaxMissedCleavages)
	assert.Equal(t, 6, c.Digestion.MinLength)
	assert.Equal(t, 350.0, c.Conversion.Precursor.Min)
	assert.Equal(t, 1000.0, c.Conversion.Precursor.Max)
	assert.Equal(t, 100, c.Batching.ChunkSize)
	assert.Equal(t, core.PolicySkip, c.Policy.OnEmptyBatch)
	assert.Equal(t, core.PolicyFail, c.Policy.OnMalformedRecord)
	assert.Equal(t, 12, c.Filter.TopN)
	assert.Equal(t, "y", c.Filter.IonTypes)
	assert.Zero(t, c.Filter.IntensityCutoff)
}

func TestLoadEnvAndFlags(t *testing.T) {
	t.Setenv("DBSEEK_BATCHING_CHUNK_SIZE", "250")
	t.Setenv("DBSEEK_DIGESTION_MIN_LENGTH", "7")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("min-length", 6, "")
	require.NoError(t, flags.Parse([]string{"--min-length=8"}))

	v := viper.New()
	require.NoError(t, v.BindPFlag("digestion.min_length", flags.Lookup("min-length")))

	c, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, 250, c.Batching.ChunkSize)
	// flags beat the environment
	assert.Equal(t, 8, c.Digestion.MinLength)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"chunk size", "batching:\n  chunk_size: 0\n", "batching.chunk_size"},
		{"enzyme", "digestion:\n  enzyme: pepsin-x\n", "digestion.enzyme"},
		{"policy", "policy:\n  on_empty_batch: retry\n", "policy.on_empty_batch"},
		{"window", "conversion:\n  fragment_mz:\n    min: 3000\n", "conversion.fragment_mz"},
		{"nmer", "nmer_size: 0\n", "nmer_size"},
		{"cutoff", "filter:\n  intensity_cutoff: 150\n", "filter.intensity_cutoff"},
		{"ion types", "filter:\n  ion_types: bq\n", "filter.ion_types"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(viper.New(), writeSettings(t, tt.body))
			var cfgErr *core.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestWriteRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Default()))
	assert.Contains(t, buf.String(), "chunk_size: 5000")
	assert.Contains(t, buf.String(), "on_malformed_record: fail")

	c, err := Load(viper.New(), writeSettings(t, buf.String()))
	require.NoError(t, err)
	assert.Equal(t, Default(), *c)
}

package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takatori/ftmq-api/internal"
	"github.com/takatori/ftmq-api/internal/testutil"
	"gopkg.in/yaml.v3"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		catalogFormat, catalogStats = "json", false
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersion(t *testing.T) {
	assert.Equal(t, internal.Version+"\n", run(t, "version"))
}

func TestCatalogCommand(t *testing.T) {
	t.Setenv("FTMQ_API_STORE_URI", testutil.StorePath(t))

	var c struct {
		Datasets []struct {
			Name  string         `json:"name" yaml:"name"`
			Stats map[string]any `json:"stats" yaml:"stats"`
		} `json:"datasets" yaml:"datasets"`
	}
	require.NoError(t, json.Unmarshal([]byte(run(t, "catalog")), &c))
	require.Len(t, c.Datasets, 3)
	assert.Equal(t, "ec_meetings", c.Datasets[0].Name)
	assert.Nil(t, c.Datasets[0].Stats)

	c.Datasets = nil
	require.NoError(t, yaml.Unmarshal([]byte(run(t, "catalog", "--format", "yaml", "--stats")), &c))
	require.Len(t, c.Datasets, 3)
	assert.Equal(t, 8, c.Datasets[2].Stats["entity_count"])
}

func TestToYAML(t *testing.T) {
	data, err := toYAML(map[string]any{"entity_count": 2, "name": "gdho"})
	require.NoError(t, err)
	assert.Equal(t, "entity_count: 2\nname: gdho\n", string(data))
}

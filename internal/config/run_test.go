package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/bulkops/internal/config"
	"github.com/rshade/bulkops/internal/engine/batch"
	"github.com/rshade/bulkops/internal/entity"
)

func writeRunFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadRunFile_Items(t *testing.T) {
	path := writeRunFile(t, `
operation: relabel
record_type: node
batch_size: 2
configuration:
  prefix: "[old] "
source:
  items:
    - [en, "1"]
    - [fr, "1", "7"]
`)

	rf, err := config.LoadRunFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, rf.Path())
	assert.Equal(t, "relabel", rf.Operation)

	src, err := rf.BatchSource()
	require.NoError(t, err)
	assert.Equal(t, []entity.Descriptor{
		{PrimaryID: "1", Langcode: "en"},
		{PrimaryID: "1", Langcode: "fr", RevisionID: 7},
	}, src.List)
	assert.True(t, src.Query.IsZero())
}

func TestLoadRunFile_View(t *testing.T) {
	path := writeRunFile(t, `
operation: publish
record_type: node
source:
  view:
    id: articles
    display: default
    arguments: [article]
    exposed_input:
      status: "0"
`)

	rf, err := config.LoadRunFile(path)
	require.NoError(t, err)

	src, err := rf.BatchSource()
	require.NoError(t, err)
	assert.Empty(t, src.List)
	assert.Equal(t, "articles", src.Query.View)
	assert.Equal(t, []string{"article"}, src.Query.Arguments)
	assert.Equal(t, "0", src.Query.ExposedInput["status"])
}

func TestLoadRunFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "no operation", content: "record_type: node\n", wantErr: "operation is required"},
		{name: "no record type", content: "operation: publish\n", wantErr: "record_type is required"},
		{name: "bad batch size", content: "operation: publish\nrecord_type: node\nbatch_size: 20000\n", wantErr: "batch_size"},
		{
			name:    "bad tuple",
			content: "operation: publish\nrecord_type: node\nsource:\n  items:\n    - [en]\n",
			wantErr: "source.items",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadRunFile(writeRunFile(t, tt.content))
			require.Error(t, err)
			assert.True(t, errors.Is(err, config.ErrInvalidRunFile))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadRunFile(filepath.Join(t.TempDir(), "none.yaml"))
		assert.Error(t, err)
	})
}

func TestRunFile_SessionConfig(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Operations["relabel"] = map[string]any{"suffix": "!"}
	cfg.Batch.Size = 30

	rf := &config.RunFile{
		Operation:     "relabel",
		RecordType:    "node",
		Configuration: map[string]any{"prefix": "> "},
	}
	progress := batch.NewProgress(5)

	sc := rf.SessionConfig(cfg, progress)
	assert.Equal(t, "relabel", sc.OperationID)
	assert.Equal(t, "node", sc.RecordType)
	assert.Equal(t, map[string]any{"prefix": "> "}, sc.Configuration)
	assert.Equal(t, map[string]any{"suffix": "!"}, sc.Preconfiguration)
	assert.Same(t, progress, sc.Progress)

	assert.Equal(t, 30, rf.EffectiveBatchSize(cfg))
	rf.BatchSize = 4
	assert.Equal(t, 4, rf.EffectiveBatchSize(cfg))
	assert.Equal(t, 4, rf.EffectiveBatchSize(nil))
	rf.BatchSize = 0
	assert.Equal(t, batch.DefaultBatchSize, rf.EffectiveBatchSize(nil))
}

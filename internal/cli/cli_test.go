package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/bulkops/internal/checkpoint"
	"github.com/rshade/bulkops/internal/config"
)

const testRecords = `
records:
  - type: node
    id: "1"
    bundle: article
    default_langcode: en
    translations:
      en: {label: Hello}
      FR: {label: Bonjour, status: unpublished}
  - type: node
    id: "2"
    bundle: article
    default_langcode: en
    translations:
      en: {label: Second, status: unpublished}
  - type: node
    id: "3"
    bundle: page
    translations:
      en: {label: About}
`

// setupHome isolates configuration, storage and checkpoints in a temp dir.
func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.EnvHome, home)
	t.Setenv(config.EnvProjectDir, t.TempDir())
	t.Setenv(config.EnvLogLevel, "error")
	t.Setenv(config.EnvLogFormat, "json")
	t.Setenv(config.EnvStoreDriver, "")
	t.Setenv(config.EnvStoreDSN, "")
	t.Setenv(config.EnvBatchSize, "")
	config.ResetGlobalConfigForTest()
	t.Cleanup(config.ResetGlobalConfigForTest)
	return home
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func importTestRecords(t *testing.T, home string) {
	t.Helper()
	out, err := execute(t, "records", "import", writeFile(t, home, "records.yaml", testRecords))
	require.NoError(t, err, out)
	assert.Contains(t, out, "Imported 3 record(s)")
}

func listRows(t *testing.T, args ...string) []map[string]string {
	t.Helper()
	out, err := execute(t, append([]string{"records", "list", "-o", "json"}, args...)...)
	require.NoError(t, err, out)
	var page recordsPage
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	return page.Rows
}

var runIDPattern = regexp.MustCompile(`--resume ([0-9A-Z]{26})`)

func TestRecordsImportAndList(t *testing.T) {
	home := setupHome(t)
	importTestRecords(t, home)

	t.Run("one row per translation", func(t *testing.T) {
		rows := listRows(t, "--view", "node")
		require.Len(t, rows, 4)
		assert.Equal(t, "1", rows[0]["id"])
		assert.Equal(t, "en", rows[0]["node_langcode"])
		assert.Equal(t, "fr", rows[1]["node_langcode"], "langcodes are canonicalized on import")
	})

	t.Run("exposed filters", func(t *testing.T) {
		rows := listRows(t, "--view", "node", "--filter", "status=unpublished")
		require.Len(t, rows, 2)
		assert.Equal(t, "Bonjour", rows[0]["label"])
		assert.Equal(t, "Second", rows[1]["label"])
	})

	t.Run("paging and sorting", func(t *testing.T) {
		out, err := execute(t, "records", "list", "--view", "node", "--page", "2", "--page-size", "3", "-o", "json")
		require.NoError(t, err, out)
		var page recordsPage
		require.NoError(t, json.Unmarshal([]byte(out), &page))
		assert.Len(t, page.Rows, 1)
		assert.Equal(t, 2, page.Meta.CurrentPage)
		assert.Equal(t, 4, page.Meta.TotalItems)

		rows := listRows(t, "--view", "node", "--sort", "label:desc")
		require.Len(t, rows, 4)
		assert.Equal(t, "Second", rows[0]["label"])
	})

	t.Run("table output", func(t *testing.T) {
		out, err := execute(t, "records", "list", "--view", "node")
		require.NoError(t, err)
		assert.Contains(t, out, "Bonjour")
		assert.Contains(t, out, "Page 1 of 1 (4 rows)")
	})

	t.Run("errors", func(t *testing.T) {
		_, err := execute(t, "records", "list", "--view", "missing")
		assert.Error(t, err)

		_, err = execute(t, "records", "list", "--view", "node", "--page", "1", "--offset", "2", "--page-size", "2")
		assert.Error(t, err)

		_, err = execute(t, "records", "list", "--view", "node", "--filter", "nonsense")
		assert.Error(t, err)
	})
}

func TestRecordsImport_Invalid(t *testing.T) {
	home := setupHome(t)

	tests := []struct {
		name    string
		content string
	}{
		{name: "missing id", content: "records:\n  - type: node\n    translations:\n      en: {label: x}\n"},
		{name: "no translations", content: "records:\n  - type: node\n    id: \"1\"\n"},
		{name: "bad langcode", content: "records:\n  - type: node\n    id: \"1\"\n    translations:\n      \"!!\": {label: x}\n"},
		{
			name:    "ambiguous default",
			content: "records:\n  - type: node\n    id: \"1\"\n    translations:\n      en: {label: x}\n      de: {label: y}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "records", "import", writeFile(t, home, "bad.yaml", tt.content))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidImport))
		})
	}
}

func TestRun_ListSource(t *testing.T) {
	home := setupHome(t)
	importTestRecords(t, home)

	runFile := writeFile(t, home, "relabel.yaml", `
operation: relabel
record_type: node
batch_size: 2
configuration:
  prefix: "[x] "
source:
  items:
    - [en, "1"]
    - [fr, "1"]
    - [en, "99"]
`)

	out, err := execute(t, "run", runFile, "--verbose")
	require.NoError(t, err, out)
	assert.Contains(t, out, "step 1: 2 queued, 0 unresolved")
	assert.Contains(t, out, "step 2: 0 queued, 1 unresolved")
	assert.Contains(t, out, `relabeled "[x] Bonjour"`)
	assert.Contains(t, out, "completed")
	assert.NotContains(t, out, "Resume with")
	assert.NotContains(t, out, "Warning:")

	rows := listRows(t, "--view", "node", "--filter", "bundle=article")
	assert.Equal(t, "[x] Hello", rows[0]["label"])
	assert.Equal(t, "[x] Bonjour", rows[1]["label"])
	assert.Equal(t, "Second", rows[2]["label"])

	store, err := checkpoint.NewFileStore(filepath.Join(home, "runs"))
	require.NoError(t, err)
	runs, err := store.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, checkpoint.StatusCompleted, runs[0].Status)
	assert.Equal(t, checkpoint.Tally{Done: 2}, runs[0].Outcomes)
	assert.Equal(t, 1, runs[0].Progress.Skipped)
}

func TestRun_PauseAndResume(t *testing.T) {
	home := setupHome(t)
	importTestRecords(t, home)

	runFile := writeFile(t, home, "publish.yaml", `
operation: publish
record_type: node
source:
  view:
    id: node
    exposed_input:
      bundle: article
`)

	out, err := execute(t, "run", runFile, "--batch-size", "1", "--max-steps", "2")
	require.NoError(t, err, out)
	assert.Contains(t, out, "running")
	assert.NotContains(t, out, "Warning:", "publish does not write bundle")
	match := runIDPattern.FindStringSubmatch(out)
	require.Len(t, match, 2, out)
	runID := match[1]

	t.Run("runs list shows the paused run", func(t *testing.T) {
		listOut, listErr := execute(t, "runs", "list")
		require.NoError(t, listErr)
		assert.Contains(t, listOut, runID)
		assert.Contains(t, listOut, "2/3")
	})

	t.Run("resume completes", func(t *testing.T) {
		resumeOut, resumeErr := execute(t, "run", runFile, "--resume", runID)
		require.NoError(t, resumeErr, resumeOut)
		assert.Contains(t, resumeOut, "completed")

		rows := listRows(t, "--view", "node", "--filter", "status=unpublished")
		assert.Empty(t, rows)
	})

	t.Run("completed runs cannot resume", func(t *testing.T) {
		_, resumeErr := execute(t, "run", runFile, "--resume", runID)
		assert.True(t, errors.Is(resumeErr, ErrRunCompleted))
	})

	t.Run("mismatched run file", func(t *testing.T) {
		other := writeFile(t, home, "other.yaml", "operation: unpublish\nrecord_type: node\nsource:\n  view: {id: node}\n")
		_, resumeErr := execute(t, "run", other, "--resume", runID)
		assert.True(t, errors.Is(resumeErr, ErrRunMismatch))
	})

	t.Run("show and prune", func(t *testing.T) {
		showOut, showErr := execute(t, "runs", "show", runID)
		require.NoError(t, showErr)
		var state checkpoint.RunState
		require.NoError(t, json.Unmarshal([]byte(showOut), &state))
		assert.Equal(t, runID, state.RunID)
		assert.Equal(t, "publish", state.OperationID)

		pruneOut, pruneErr := execute(t, "runs", "prune")
		require.NoError(t, pruneErr)
		assert.Contains(t, pruneOut, "Removed 1 finished run(s)")

		_, deleteErr := execute(t, "runs", "delete", runID)
		assert.True(t, errors.Is(deleteErr, checkpoint.ErrRunNotFound))
	})
}

func TestRun_ExportRows(t *testing.T) {
	home := setupHome(t)
	importTestRecords(t, home)

	exportPath := filepath.Join(home, "export.yaml")
	runFile := writeFile(t, home, "export.yaml.run", `
operation: export_rows
record_type: node
configuration:
  path: `+exportPath+`
source:
  view:
    id: node
`)

	out, err := execute(t, "run", runFile)
	require.NoError(t, err, out)

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(data), "entity_id:"))
	assert.Contains(t, string(data), "Bonjour")
}

func TestRun_ResumeAfterFailedStep(t *testing.T) {
	home := setupHome(t)
	importTestRecords(t, home)

	const runTemplate = `
operation: export_rows
record_type: node
batch_size: 2
configuration:
  path: %s
source:
  items:
    - [en, "1"]
    - [en, "2"]
    - [en, "3"]
  view:
    id: node
`
	exportPath := filepath.Join(home, "export.yaml")
	missingDir := filepath.Join(home, "missing", "export.yaml")
	runFile := writeFile(t, home, "export.run", fmt.Sprintf(runTemplate, missingDir))

	_, err := execute(t, "run", runFile)
	require.Error(t, err)

	store, err := checkpoint.NewFileStore(filepath.Join(home, "runs"))
	require.NoError(t, err)
	runs, err := store.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	failed := runs[0]
	assert.Equal(t, checkpoint.StatusFailed, failed.Status)
	assert.Zero(t, failed.Progress.Offset)
	assert.Zero(t, failed.Progress.Processed)
	assert.Zero(t, failed.Progress.Steps)
	assert.NotEmpty(t, failed.LastError)

	writeFile(t, home, "export.run", fmt.Sprintf(runTemplate, exportPath))
	out, err := execute(t, "run", runFile, "--resume", failed.RunID)
	require.NoError(t, err, out)
	assert.Contains(t, out, "completed")

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	for _, id := range []string{"1", "2", "3"} {
		assert.Contains(t, string(data), `entity_id: "`+id+`"`)
	}
	assert.Equal(t, 3, strings.Count(string(data), "entity_id:"))

	resumed, err := store.Get(failed.RunID)
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusCompleted, resumed.Status)
	assert.Equal(t, 3, resumed.Progress.Processed)
	assert.Equal(t, 3, resumed.Progress.Offset)
}

func TestRun_WarnsWhenOperationWritesFilteredField(t *testing.T) {
	home := setupHome(t)
	importTestRecords(t, home)

	runFile := writeFile(t, home, "publish-unpublished.yaml", `
operation: publish
record_type: node
source:
  view:
    id: node
    exposed_input:
      status: unpublished
`)

	out, err := execute(t, "run", runFile)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Warning: publish writes status, which view node filters on")
	assert.Contains(t, out, "completed")
}

func TestRun_Errors(t *testing.T) {
	home := setupHome(t)

	t.Run("unknown operation fails the run", func(t *testing.T) {
		runFile := writeFile(t, home, "bad.yaml", "operation: explode\nrecord_type: node\nsource:\n  items: [[en, \"1\"]]\n")
		out, err := execute(t, "run", runFile)
		require.Error(t, err)
		assert.Contains(t, out, "explode")
	})

	t.Run("invalid batch size", func(t *testing.T) {
		runFile := writeFile(t, home, "ok.yaml", "operation: publish\nrecord_type: node\nsource:\n  items: [[en, \"1\"]]\n")
		_, err := execute(t, "run", runFile, "--batch-size", "20000")
		assert.True(t, errors.Is(err, config.ErrBatchSizeOutOfRange))
	})

	t.Run("negative max steps", func(t *testing.T) {
		runFile := writeFile(t, home, "ok2.yaml", "operation: publish\nrecord_type: node\nsource:\n  items: [[en, \"1\"]]\n")
		_, err := execute(t, "run", runFile, "--max-steps", "-1")
		assert.Error(t, err)
	})

	t.Run("unknown run id", func(t *testing.T) {
		runFile := writeFile(t, home, "ok3.yaml", "operation: publish\nrecord_type: node\nsource:\n  items: [[en, \"1\"]]\n")
		_, err := execute(t, "run", runFile, "--resume", "not-a-ulid")
		assert.True(t, errors.Is(err, checkpoint.ErrInvalidRunID))
	})
}

func TestOperationsList(t *testing.T) {
	setupHome(t)

	out, err := execute(t, "operations", "list")
	require.NoError(t, err)
	for _, id := range []string{"publish", "unpublish", "relabel", "export_rows"} {
		assert.Contains(t, out, id)
	}
	assert.Contains(t, out, "view,progress")

	out, err = execute(t, "operations", "list", "-o", "json")
	require.NoError(t, err)
	var defs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &defs))
	assert.Len(t, defs, 4)

	_, err = execute(t, "operations", "list", "-o", "xml")
	assert.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	home := setupHome(t)

	out, err := execute(t, "config", "validate", "--verbose")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, filepath.Join(home, "records.db"))

	out, err = execute(t, "config", "init")
	require.NoError(t, err, out)
	assert.FileExists(t, filepath.Join(home, "config.yaml"))

	_, err = execute(t, "config", "init")
	assert.Error(t, err, "refuses to overwrite")

	out, err = execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "driver: sqlite")

	t.Setenv(config.EnvBatchSize, "0")
	_, err = execute(t, "config", "validate")
	assert.Error(t, err)
}

package operation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/bulkops/internal/entity"
)

type stubOperation struct {
	cfg map[string]any
}

func (s *stubOperation) ExecuteMultiple(context.Context, []entity.Entity) ([]Outcome, error) {
	return nil, nil
}

func stubFactory(cfg map[string]any, _ Deps) (Operation, error) {
	return &stubOperation{cfg: cfg}, nil
}

func TestCatalog_RegisterAndCreate(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(Definition{
		ID:            "touch",
		Label:         "Touch",
		Version:       "1.0.0",
		PassContext:   true,
		Writes:        []string{"label"},
		DefaultConfig: map[string]any{"mode": "fast"},
	}, stubFactory))

	def, err := c.Definition("touch")
	require.NoError(t, err)
	assert.Equal(t, "Touch", def.Label)
	assert.True(t, def.PassContext)
	assert.False(t, def.PassView)

	// callers cannot mutate the stored defaults
	def.DefaultConfig["mode"] = "slow"
	again, err := c.Definition("touch")
	require.NoError(t, err)
	assert.Equal(t, "fast", again.DefaultConfig["mode"])

	def.Writes[0] = "status"
	again, err = c.Definition("touch")
	require.NoError(t, err)
	assert.Equal(t, []string{"label"}, again.Writes)

	op, err := c.Create("touch", map[string]any{"a": 1}, Deps{RecordType: "node"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, op.(*stubOperation).cfg)
}

func TestCatalog_UnknownOperation(t *testing.T) {
	c := NewCatalog()

	_, err := c.Definition("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownOperation))

	var unknown *UnknownOperationError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "missing", unknown.ID)
	assert.Contains(t, err.Error(), `"missing"`)

	_, err = c.Create("missing", nil, Deps{})
	assert.True(t, errors.Is(err, ErrUnknownOperation))
}

func TestCatalog_HigherVersionWins(t *testing.T) {
	tests := []struct {
		name      string
		versions  []string
		wantLabel string
	}{
		{name: "upgrade", versions: []string{"1.0.0", "1.2.0"}, wantLabel: "v1.2.0"},
		{name: "downgrade ignored", versions: []string{"2.0.0", "1.9.9"}, wantLabel: "v2.0.0"},
		{name: "same version keeps first", versions: []string{"1.0.0", "1.0.0"}, wantLabel: "v1.0.0"},
		{name: "prerelease is lower", versions: []string{"1.0.0", "1.0.0-rc.1"}, wantLabel: "v1.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCatalog()
			for i, v := range tt.versions {
				label := "v" + v
				if i > 0 && v == tt.versions[0] {
					label = "second"
				}
				require.NoError(t, c.Register(Definition{ID: "op", Label: label, Version: v}, stubFactory))
			}
			def, err := c.Definition("op")
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabel, def.Label)
		})
	}
}

func TestCatalog_RegisterValidates(t *testing.T) {
	c := NewCatalog()

	err := c.Register(Definition{}, stubFactory)
	assert.True(t, errors.Is(err, ErrInvalidDefinition))

	err = c.Register(Definition{ID: "x"}, nil)
	assert.True(t, errors.Is(err, ErrInvalidDefinition))

	err = c.Register(Definition{ID: "x", Version: "not-a-version"}, stubFactory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid semver format")
}

func TestCatalog_DefaultsAndList(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(Definition{ID: "b"}, stubFactory))
	require.NoError(t, c.Register(Definition{ID: "a", Label: "Alpha", Version: "0.1.0"}, stubFactory))

	defs := c.List()
	require.Len(t, defs, 2)
	assert.Equal(t, "a", defs[0].ID)
	assert.Equal(t, "b", defs[1].ID)
	assert.Equal(t, "b", defs[1].Label)
	assert.Equal(t, "0.0.0", defs[1].Version)
}

func TestCatalog_FactoryError(t *testing.T) {
	c := NewCatalog()
	boom := errors.New("boom")
	require.NoError(t, c.Register(Definition{ID: "bad"}, func(map[string]any, Deps) (Operation, error) {
		return nil, boom
	}))

	_, err := c.Create("bad", nil, Deps{})
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "creating operation bad")
}

func TestMergeConfig(t *testing.T) {
	explicit := map[string]any{"prefix": "A", "count": 1}
	pre := map[string]any{"prefix": "B", "suffix": "!"}
	defaults := map[string]any{"prefix": "C", "suffix": "?", "mode": "x"}

	got := MergeConfig(explicit, pre, defaults)
	assert.Equal(t, map[string]any{"prefix": "A", "count": 1, "suffix": "!", "mode": "x"}, got)

	got["prefix"] = "changed"
	assert.Equal(t, "A", explicit["prefix"])

	assert.Empty(t, MergeConfig(nil, nil))
}

func TestConfigHelpers(t *testing.T) {
	cfg := map[string]any{"s": "text", "n": 3, "b": true, "bs": "false", "bad": 1.5}

	assert.Equal(t, "text", ConfigString(cfg, "s", ""))
	assert.Equal(t, "3", ConfigString(cfg, "n", ""))
	assert.Equal(t, "fb", ConfigString(cfg, "missing", "fb"))

	b, err := ConfigBool(cfg, "b", false)
	require.NoError(t, err)
	assert.True(t, b)

	b, err = ConfigBool(cfg, "bs", true)
	require.NoError(t, err)
	assert.False(t, b)

	b, err = ConfigBool(cfg, "missing", true)
	require.NoError(t, err)
	assert.True(t, b)

	_, err = ConfigBool(cfg, "bad", false)
	assert.Error(t, err)
}

func TestOutcomeConstructors(t *testing.T) {
	assert.Equal(t, Outcome{Message: "ok", Status: StatusDone}, Done("ok"))
	assert.Equal(t, Outcome{Message: "no", Status: StatusFailed}, Failed("no"))
	assert.Equal(t, Outcome{Message: "meh", Status: StatusSkipped}, Skipped("meh"))
}

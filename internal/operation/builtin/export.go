package builtin

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rshade/bulkops/internal/entity"
	"github.com/rshade/bulkops/internal/logging"
	"github.com/rshade/bulkops/internal/operation"
	"github.com/rshade/bulkops/internal/query"
)

// ErrMissingPath is returned when export_rows has no output path.
var ErrMissingPath = errors.New("export_rows: path is required")

const exportFilePerm = 0o600

// exportDocument is one YAML document written per queued entity.
type exportDocument struct {
	EntityType string              `yaml:"entity_type"`
	EntityID   string              `yaml:"entity_id"`
	Langcode   string              `yaml:"langcode"`
	Step       int                 `yaml:"step,omitempty"`
	Offset     int                 `yaml:"offset,omitempty"`
	Rows       []map[string]string `yaml:"rows"`
}

// exportRows appends the full query rows of each queued entity to a YAML
// stream. Multi-step runs accumulate into the same file.
type exportRows struct {
	path            string
	includeProgress bool

	progress operation.Progress
	view     *query.Result
}

var (
	_ operation.ProgressAware = (*exportRows)(nil)
	_ operation.ViewAware     = (*exportRows)(nil)
)

func newExportRows(cfg map[string]any, _ operation.Deps) (operation.Operation, error) {
	path := operation.ConfigString(cfg, "path", "")
	if path == "" {
		return nil, ErrMissingPath
	}
	include, err := operation.ConfigBool(cfg, "include_progress", true)
	if err != nil {
		return nil, err
	}
	return &exportRows{path: path, includeProgress: include}, nil
}

func (x *exportRows) SetProgress(p operation.Progress) { x.progress = p }

func (x *exportRows) SetView(result *query.Result) { x.view = result }

func (x *exportRows) ExecuteMultiple(ctx context.Context, entities []entity.Entity) ([]operation.Outcome, error) {
	if len(entities) == 0 {
		return nil, nil
	}

	f, err := os.OpenFile(x.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, exportFilePerm)
	if err != nil {
		return nil, fmt.Errorf("opening export file: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2) //nolint:mnd // standard YAML indent

	outcomes := make([]operation.Outcome, 0, len(entities))
	written := 0
	for _, e := range entities {
		rows := x.rowsFor(e)
		if len(rows) == 0 {
			outcomes = append(outcomes, operation.Skipped(
				fmt.Sprintf("%s %s (%s): no rows", e.EntityType(), e.EntityID(), e.Language())))
			continue
		}

		doc := exportDocument{
			EntityType: e.EntityType(),
			EntityID:   e.EntityID(),
			Langcode:   e.Language(),
			Rows:       rows,
		}
		if x.includeProgress {
			doc.Step = x.progress.Steps
			doc.Offset = x.progress.Offset
		}
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encoding %s %s: %w", e.EntityType(), e.EntityID(), err)
		}
		written++
		outcomes = append(outcomes, operation.Done(
			fmt.Sprintf("%s %s (%s) exported %d row(s)", e.EntityType(), e.EntityID(), e.Language(), len(rows))))
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("flushing export file: %w", err)
	}

	logging.FromContext(ctx).Debug().Ctx(ctx).
		Str("component", "builtin").
		Str("path", x.path).
		Int("documents", written).
		Msg("rows exported")

	return outcomes, nil
}

// rowsFor returns the view rows of e in its projected language.
func (x *exportRows) rowsFor(e entity.Entity) []map[string]string {
	if x.view == nil {
		return nil
	}
	langField := query.LanguageField(e.EntityType())
	var rows []map[string]string
	for _, row := range x.view.RowsFor(e.EntityID()) {
		if lang, ok := row.Value(langField); ok && lang != e.Language() {
			continue
		}
		rows = append(rows, row.Values)
	}
	return rows
}

package builtin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rshade/bulkops/internal/entity"
	"github.com/rshade/bulkops/internal/operation"
	"github.com/rshade/bulkops/internal/storage"
)

// ErrMissingAffix is returned when relabel has neither prefix nor suffix.
var ErrMissingAffix = errors.New("relabel: prefix or suffix is required")

// relabel wraps each label in a prefix and suffix. Labels that already carry
// both are skipped so repeated runs do not stack.
type relabel struct {
	prefix string
	suffix string
	store  storage.Storage
}

func newRelabel(cfg map[string]any, deps operation.Deps) (operation.Operation, error) {
	if deps.Storage == nil {
		return nil, ErrNoStorage
	}
	r := &relabel{
		prefix: operation.ConfigString(cfg, "prefix", ""),
		suffix: operation.ConfigString(cfg, "suffix", ""),
		store:  deps.Storage,
	}
	if r.prefix == "" && r.suffix == "" {
		return nil, ErrMissingAffix
	}
	return r, nil
}

func (r *relabel) ExecuteMultiple(ctx context.Context, entities []entity.Entity) ([]operation.Outcome, error) {
	outcomes := make([]operation.Outcome, 0, len(entities))
	for _, e := range entities {
		rec, ok := e.(*entity.Record)
		if !ok {
			outcomes = append(outcomes, operation.Skipped(
				fmt.Sprintf("%s %s: unsupported entity", e.EntityType(), e.EntityID())))
			continue
		}

		label := rec.Label()
		if strings.HasPrefix(label, r.prefix) && strings.HasSuffix(label, r.suffix) {
			outcomes = append(outcomes, operation.Skipped(
				fmt.Sprintf("%s %s (%s) already labeled %q", rec.Type, rec.ID, rec.Language(), label)))
			continue
		}

		updated := r.prefix + label + r.suffix
		rec.SetLabel(updated)
		if err := r.store.Save(ctx, rec); err != nil {
			outcomes = append(outcomes, operation.Failed(
				fmt.Sprintf("%s %s (%s): %v", rec.Type, rec.ID, rec.Language(), err)))
			continue
		}
		outcomes = append(outcomes, operation.Done(
			fmt.Sprintf("%s %s (%s) relabeled %q", rec.Type, rec.ID, rec.Language(), updated)))
	}
	return outcomes, nil
}

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rshade/bulkops/internal/cli/pagination"
	"github.com/rshade/bulkops/internal/config"
	"github.com/rshade/bulkops/internal/entity"
	"github.com/rshade/bulkops/internal/logging"
	"github.com/rshade/bulkops/internal/query"
)

// ErrInvalidImport is returned for record files that cannot be imported.
var ErrInvalidImport = errors.New("invalid record file")

// recordFile is the layout of a record import file.
type recordFile struct {
	Records []entity.Record `yaml:"records"`
}

// NewRecordsImportCmd creates the records import command.
func NewRecordsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <records.yaml>",
		Short: "Import records from a YAML file",
		Long: `Imports records from a YAML file. Every record is saved as a new revision;
records with an existing ID are updated.

  records:
    - type: node
      id: "1"
      bundle: article
      default_langcode: en
      translations:
        en: {label: Hello, status: published}
        fr: {label: Bonjour, status: unpublished}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return importRecords(cmd, args[0])
		},
	}
}

func importRecords(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	log := logging.FromContext(ctx)

	records, err := readRecordFile(path)
	if err != nil {
		return err
	}

	types := make([]string, 0)
	seen := map[string]bool{}
	for _, r := range records {
		if !seen[r.Type] {
			seen[r.Type] = true
			types = append(types, r.Type)
		}
	}

	env, err := openEnvironment(ctx, config.GetGlobalConfig(), types...)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	for _, r := range records {
		store, storeErr := env.db.Storage(r.Type)
		if storeErr != nil {
			return storeErr
		}
		if err = store.Save(ctx, r); err != nil {
			return fmt.Errorf("saving %s %s: %w", r.Type, r.ID, err)
		}
		log.Debug().Ctx(ctx).
			Str("record_type", r.Type).
			Str("id", r.ID).
			Int64("revision_id", r.RevisionID).
			Msg("record imported")
	}

	cmd.Printf("Imported %s record(s) from %s\n", formatCount(len(records)), path)
	return nil
}

// readRecordFile parses path and canonicalizes every record's langcodes.
func readRecordFile(path string) ([]*entity.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading record file: %w", err)
	}
	var file recordFile
	if err = yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImport, err)
	}

	out := make([]*entity.Record, 0, len(file.Records))
	for i, raw := range file.Records {
		rec, normErr := normalizeRecord(raw)
		if normErr != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrInvalidImport, i, normErr)
		}
		out = append(out, rec)
	}
	return out, nil
}

func normalizeRecord(raw entity.Record) (*entity.Record, error) {
	if raw.Type == "" || raw.ID == "" {
		return nil, errors.New("type and id are required")
	}
	if len(raw.Translations) == 0 {
		return nil, errors.New("at least one translation is required")
	}
	def, err := entity.CanonicalLangcode(raw.DefaultLangcode)
	if err != nil {
		return nil, err
	}
	if def == "" && len(raw.Translations) > 1 {
		return nil, errors.New("default_langcode is required for records with several translations")
	}

	rec := &entity.Record{
		Type:            raw.Type,
		ID:              raw.ID,
		UUID:            raw.UUID,
		Bundle:          raw.Bundle,
		DefaultLangcode: def,
	}
	for code, t := range raw.Translations {
		if t == nil {
			continue
		}
		tr := *t
		if tr.Langcode == "" {
			tr.Langcode = code
		}
		if tr.Status == "" {
			tr.Status = entity.StatusPublished
		}
		if err = rec.AddTranslation(tr); err != nil {
			return nil, err
		}
	}
	if _, ok := rec.Translations[rec.DefaultLangcode]; !ok {
		return nil, fmt.Errorf("no translation for default langcode %q", rec.DefaultLangcode)
	}
	return rec, nil
}

type recordsListFlags struct {
	view      string
	display   string
	arguments []string
	filters   []string
	output    string
	page      pagination.Params
}

// NewRecordsListCmd creates the records list command.
func NewRecordsListCmd() *cobra.Command {
	var flags recordsListFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records through a view",
		Example: `  # First 50 rows of the default view of "node"
  bulkops records list --view node

  # Unpublished articles, second page
  bulkops records list --view node --filter bundle=article --filter status=unpublished --page 2 --page-size 20

  # Sorted by label, descending
  bulkops records list --view node --sort label:desc`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listRecords(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.view, "view", "", "view ID (required)")
	cmd.Flags().StringVar(&flags.display, "display", "", "view display (default: default)")
	cmd.Flags().StringSliceVar(&flags.arguments, "arg", nil, "positional view argument (repeatable)")
	cmd.Flags().StringArrayVar(&flags.filters, "filter", nil, "exposed filter as field=value (repeatable)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", outputTable, "output format: table, json or yaml")
	flags.page.AddFlags(cmd)
	_ = cmd.MarkFlagRequired("view")

	return cmd
}

// recordsPage is the structured output of records list.
type recordsPage struct {
	Rows []map[string]string `json:"rows"       yaml:"rows"`
	Meta pagination.Meta     `json:"pagination" yaml:"pagination"`
}

func listRecords(cmd *cobra.Command, flags recordsListFlags) error {
	ctx := cmd.Context()

	if err := validateOutputFormat(flags.output); err != nil {
		return err
	}
	if err := flags.page.Validate(); err != nil {
		return err
	}
	input, err := parseFilters(flags.filters)
	if err != nil {
		return err
	}

	env, err := openEnvironment(ctx, config.GetGlobalConfig())
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	view, err := env.views.Lookup(flags.view)
	if err != nil {
		return err
	}

	base := query.New(query.Spec{
		View:         flags.view,
		Display:      flags.display,
		Arguments:    flags.arguments,
		ExposedInput: input,
	})
	total, err := env.executor.Count(ctx, base)
	if err != nil {
		return err
	}
	result, err := env.executor.Execute(ctx, flags.page.Apply(base))
	if err != nil {
		return err
	}
	rows, err := pagination.NewRowSorter(view.RecordType).Sort(result.Rows, flags.page.Sort)
	if err != nil {
		return err
	}

	meta := pagination.NewMeta(flags.page, total)
	if flags.output != outputTable {
		page := recordsPage{Rows: make([]map[string]string, 0, len(rows)), Meta: meta}
		for _, r := range rows {
			page.Rows = append(page.Rows, r.Values)
		}
		return writeStructured(cmd.OutOrStdout(), flags.output, page)
	}
	return writeRecordsTable(cmd.OutOrStdout(), view.RecordType, rows, meta)
}

func writeRecordsTable(out io.Writer, recordType string, rows []query.Row, meta pagination.Meta) error {
	langField := query.LanguageField(recordType)

	w := tabwriter.NewWriter(out, 0, 0, tabPadding, ' ', 0)
	fmt.Fprintln(w, "ID\tLang\tBundle\tStatus\tLabel")
	fmt.Fprintln(w, "--\t----\t------\t------\t-----")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.Values["id"], r.Values[langField], r.Values["bundle"], r.Values["status"], r.Values["label"])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(out, "\nPage %s of %s (%s rows)\n",
		formatCount(meta.CurrentPage), formatCount(meta.TotalPages), formatCount(meta.TotalItems))
	return err
}

// parseFilters turns field=value pairs into exposed input.
func parseFilters(filters []string) (map[string]string, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	input := make(map[string]string, len(filters))
	for _, f := range filters {
		field, value, ok := strings.Cut(f, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid filter %q: want field=value", f)
		}
		input[field] = strings.TrimSpace(value)
	}
	return input, nil
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/Ramsey-B/clover/pkg/logbook"
	"github.com/Ramsey-B/clover/pkg/mapping"
	"github.com/Ramsey-B/clover/pkg/meta"
	"github.com/Ramsey-B/clover/pkg/reader"
	"github.com/Ramsey-B/clover/pkg/uxon"
	"github.com/Ramsey-B/clover/pkg/variables"
	"github.com/spf13/cobra"
)

type mapOptions struct {
	model     string
	mapper    string
	from      string
	to        string
	data      []string
	variables map[string]string
	logbook   bool
}

type mapOutput struct {
	ToSheet   uxon.Object    `json:"to_sheet"`
	FromSheet uxon.Object    `json:"from_sheet,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
	Logbook   []string       `json:"logbook,omitempty"`
}

func newMapCommand() *cobra.Command {
	opts := mapOptions{}
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Run a mapper file against a sheet file without the service",
		Example: `  clover map --mapper orders.hjson --from orders.json
  clover map --mapper positions.yaml --from orders.yaml --data customers.json --var limit=10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMap(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.model, "model", "model.hjson", "metamodel file")
	cmd.Flags().StringVar(&opts.mapper, "mapper", "", "mapper configuration file")
	cmd.Flags().StringVar(&opts.from, "from", "", "from-sheet file")
	cmd.Flags().StringVar(&opts.to, "to", "", "optional to-sheet file")
	cmd.Flags().StringArrayVar(&opts.data, "data", nil, "sheet files reads, joins and lookups are answered from")
	cmd.Flags().StringToStringVar(&opts.variables, "var", nil, "initial variables as key=value")
	cmd.Flags().BoolVar(&opts.logbook, "logbook", false, "include the logbook in the output")
	_ = cmd.MarkFlagRequired("mapper")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func runMap(cmd *cobra.Command, opts mapOptions) error {
	model, err := meta.LoadModel(opts.model)
	if err != nil {
		return fmt.Errorf("failed to load model %s: %w", opts.model, err)
	}

	config, err := readUxonFile(opts.mapper)
	if err != nil {
		return err
	}
	mapper, err := mapping.FromUxon(model, config)
	if err != nil {
		return err
	}

	from, err := readSheet(mapper.FromObject(), opts.from)
	if err != nil {
		return err
	}
	var to *datasheet.DataSheet
	if opts.to != "" {
		if to, err = readSheet(mapper.ToObject(), opts.to); err != nil {
			return err
		}
	}

	sources := make([]*datasheet.DataSheet, 0, len(opts.data))
	for _, path := range opts.data {
		sheet, err := readAnySheet(model, path)
		if err != nil {
			return err
		}
		sources = append(sources, sheet)
	}

	initial := make(map[string]any, len(opts.variables))
	for k, v := range opts.variables {
		initial[k] = v
	}
	store := variables.NewMemory(initial)
	book := logbook.NewMemory("mapper " + opts.mapper)

	mapped, err := mapper.Map(cmd.Context(), from, to, mapping.Env{
		Logbook:   book,
		Variables: store,
		Reader:    reader.NewMemory(sources...),
	})
	if err != nil {
		return err
	}

	out := mapOutput{ToSheet: mapped.ExportUxon(), Variables: store.All()}
	if mapper.MutatesFromSheet() {
		out.FromSheet = from.ExportUxon()
	}
	if opts.logbook {
		out.Logbook = book.Lines()
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func readSheet(object *meta.Object, path string) (*datasheet.DataSheet, error) {
	u, err := readUxonFile(path)
	if err != nil {
		return nil, err
	}
	sheet, err := datasheet.FromUxonForObject(object, u)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sheet, nil
}

// readAnySheet loads a sheet of whatever object it names.
func readAnySheet(model *meta.Model, path string) (*datasheet.DataSheet, error) {
	u, err := readUxonFile(path)
	if err != nil {
		return nil, err
	}
	alias := strings.TrimSpace(u.GetString("object_alias"))
	if alias == "" {
		return nil, fmt.Errorf("%s: object_alias is required", path)
	}
	object, err := model.GetObject(alias)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return readSheet(object, path)
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

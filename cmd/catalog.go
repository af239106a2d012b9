package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/takatori/ftmq-api/internal/catalog"
	"gopkg.in/yaml.v3"
)

var (
	catalogFormat string
	catalogStats  bool
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the catalog served by the api",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.Catalog(ctx)
		if err != nil {
			return err
		}
		out := *c
		if catalogStats {
			out.Datasets = make([]catalog.Dataset, 0, len(c.Datasets))
			for _, d := range c.Datasets {
				v, err := a.View(ctx, d.Name)
				if err != nil {
					return err
				}
				stats, err := v.Stats(ctx, nil)
				if err != nil {
					return err
				}
				out.Datasets = append(out.Datasets, d.WithStats(stats))
			}
		}

		var data []byte
		switch catalogFormat {
		case "json":
			data, err = json.MarshalIndent(out, "", "  ")
		case "yaml":
			data, err = toYAML(out)
		default:
			return fmt.Errorf("unknown format %q, expected json or yaml", catalogFormat)
		}
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

func init() {
	catalogCmd.Flags().StringVarP(&catalogFormat, "format", "f", "json", "Output format: json|yaml")
	catalogCmd.Flags().BoolVar(&catalogStats, "stats", false, "Include dataset statistics")
}

// toYAML renders v with its json field names.
func toYAML(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}

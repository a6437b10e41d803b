// Package catalog reads and writes item lists for the optimizer.
package catalog

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"knapsack/internal/model"
)

type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

var ErrInvalidItem = errors.New("invalid catalog item")

// File is the document shape of YAML and JSON catalogs.
type File struct {
	Items []model.Item `json:"items" yaml:"items"`
}

// FormatFromPath infers the catalog format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported catalog extension %q", filepath.Ext(path))
	}
}

func Load(path string) ([]model.Item, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	items, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return items, nil
}

// Decode parses and validates a catalog. Item order is preserved since it
// defines the genome loci.
func Decode(r io.Reader, format Format) ([]model.Item, error) {
	var (
		items []model.Item
		err   error
	)
	switch format {
	case FormatYAML:
		items, err = decodeYAML(r)
	case FormatJSON:
		items, err = decodeJSON(r)
	case FormatCSV:
		items, err = decodeCSV(r)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if err := Validate(items); err != nil {
		return nil, err
	}
	return items, nil
}

// Validate applies the add-item rules: a non-empty name and non-negative
// value and weight.
func Validate(items []model.Item) error {
	for i, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("item %d: name is required: %w", i, ErrInvalidItem)
		}
		if item.Value < 0 {
			return fmt.Errorf("item %d (%s): value must be >= 0: %w", i, item.Name, ErrInvalidItem)
		}
		if item.Weight < 0 {
			return fmt.Errorf("item %d (%s): weight must be >= 0: %w", i, item.Name, ErrInvalidItem)
		}
	}
	return nil
}

func decodeYAML(r io.Reader) ([]model.Item, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return []model.Item{}, nil
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return nonNil(file.Items), nil
}

func decodeJSON(r io.Reader) ([]model.Item, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var file File
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return nonNil(file.Items), nil
}

func decodeCSV(r io.Reader) ([]model.Item, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	if len(records) == 0 {
		return []model.Item{}, nil
	}

	header := map[string]int{}
	for i, name := range records[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"name", "value", "weight"} {
		if _, ok := header[required]; !ok {
			return nil, fmt.Errorf("csv header missing %q column", required)
		}
	}

	items := make([]model.Item, 0, len(records)-1)
	for row, record := range records[1:] {
		line := row + 2
		value, err := strconv.ParseFloat(strings.TrimSpace(record[header["value"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: value: %w", line, err)
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(record[header["weight"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: weight: %w", line, err)
		}
		items = append(items, model.Item{
			Name:   strings.TrimSpace(record[header["name"]]),
			Value:  value,
			Weight: weight,
		})
	}
	return items, nil
}

func Save(path string, items []model.Item) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, format, items); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func Encode(w io.Writer, format Format, items []model.Item) error {
	if err := Validate(items); err != nil {
		return err
	}
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(File{Items: nonNil(items)}); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(File{Items: nonNil(items)})
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"name", "value", "weight"}); err != nil {
			return err
		}
		for _, item := range items {
			if err := cw.Write([]string{
				item.Name,
				strconv.FormatFloat(item.Value, 'f', -1, 64),
				strconv.FormatFloat(item.Weight, 'f', -1, 64),
			}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("unsupported catalog format %q", format)
	}
}

// Template is a one-item catalog carrying the default value and weight.
func Template(value, weight float64) []model.Item {
	return []model.Item{{Name: "item", Value: value, Weight: weight}}
}

func nonNil(items []model.Item) []model.Item {
	if items == nil {
		return []model.Item{}
	}
	return items
}

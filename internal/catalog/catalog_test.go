package catalog

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"knapsack/internal/model"
)

var sampleItems = []model.Item{
	{Name: "map", Value: 10, Weight: 5},
	{Name: "compass", Value: 6, Weight: 4},
	{Name: "water", Value: 8.5, Weight: 3},
}

func TestDecodeFormats(t *testing.T) {
	cases := []struct {
		format Format
		input  string
	}{
		{FormatYAML, `
items:
  - name: map
    value: 10
    weight: 5
  - name: compass
    value: 6
    weight: 4
  - name: water
    value: 8.5
    weight: 3
`},
		{FormatJSON, `{"items":[{"name":"map","value":10,"weight":5},{"name":"compass","value":6,"weight":4},{"name":"water","value":8.5,"weight":3}]}`},
		{FormatCSV, "name, value, weight\nmap,10,5\ncompass,6,4\nwater,8.5,3\n"},
		{FormatCSV, "Weight,Name,Value\n5,map,10\n4,compass,6\n3,water,8.5\n"},
	}
	for _, tc := range cases {
		items, err := Decode(strings.NewReader(tc.input), tc.format)
		if err != nil {
			t.Fatalf("decode %s: %v", tc.format, err)
		}
		if diff := cmp.Diff(sampleItems, items); diff != "" {
			t.Fatalf("decode %s mismatch (-want +got):\n%s", tc.format, diff)
		}
	}
}

func TestDecodeRejectsInvalidItems(t *testing.T) {
	inputs := map[Format]string{
		FormatCSV:  "name,value,weight\n,1,1\n",
		FormatJSON: `{"items":[{"name":"x","value":-1,"weight":1}]}`,
		FormatYAML: "items:\n  - name: x\n    value: 1\n    weight: -3\n",
	}
	for format, input := range inputs {
		_, err := Decode(strings.NewReader(input), format)
		if !errors.Is(err, ErrInvalidItem) {
			t.Fatalf("%s: expected ErrInvalidItem, got %v", format, err)
		}
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	cases := map[string]struct {
		format Format
		input  string
	}{
		"csv missing column": {FormatCSV, "name,value\nx,1\n"},
		"csv bad number":     {FormatCSV, "name,value,weight\nx,lots,1\n"},
		"json unknown field": {FormatJSON, `{"items":[{"name":"x","value":1,"weight":1,"color":"red"}]}`},
		"yaml unknown field": {FormatYAML, "things:\n  - name: x\n"},
	}
	for name, tc := range cases {
		if _, err := Decode(strings.NewReader(tc.input), tc.format); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDecodeEmptyCatalog(t *testing.T) {
	for _, format := range []Format{FormatYAML, FormatCSV} {
		items, err := Decode(strings.NewReader(""), format)
		if err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		if items == nil || len(items) != 0 {
			t.Fatalf("%s: expected empty non-nil catalog, got %#v", format, items)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"items.yaml", "items.yml", "items.json", "items.csv"} {
		path := filepath.Join(dir, name)
		if err := Save(path, sampleItems); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
		items, err := Load(path)
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		if diff := cmp.Diff(sampleItems, items); diff != "" {
			t.Fatalf("%s round trip mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected unsupported extension error")
	}
}

func TestTemplateUsesDefaults(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, FormatCSV, Template(25, 5)); err != nil {
		t.Fatalf("encode template: %v", err)
	}
	if got, want := buf.String(), "name,value,weight\nitem,25,5\n"; got != want {
		t.Fatalf("unexpected template:\n%s", got)
	}
}

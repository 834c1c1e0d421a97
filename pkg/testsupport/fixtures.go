package testsupport

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-model/dataset"
	"github.com/tailscale/hujson"
)

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads a JSON or JSONC fixture and unmarshals it into dest.
// Comments and trailing commas are allowed.
func LoadFixtureJSON(t testing.TB, path string, dest any) {
	t.Helper()

	if err := decodeJSONC(LoadFixture(t, path), dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// LoadRows loads a JSONC fixture holding an array of row objects. Integral
// numbers decode as int64.
func LoadRows(t testing.TB, path string) []dataset.Values {
	t.Helper()

	rows, err := parseRows(LoadFixture(t, path))
	if err != nil {
		t.Fatalf("failed to parse rows from %s: %v", path, err)
	}
	return rows
}

func decodeJSONC(data []byte, dest any) error {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.UseNumber()
	return dec.Decode(dest)
}

func parseRows(data []byte) ([]dataset.Values, error) {
	var raw []map[string]any
	if err := decodeJSONC(data, &raw); err != nil {
		return nil, err
	}
	rows := make([]dataset.Values, len(raw))
	for i, row := range raw {
		rows[i] = normalizeRow(row)
	}
	return rows, nil
}

func normalizeRow(row map[string]any) dataset.Values {
	out := make(dataset.Values, len(row))
	for col, v := range row {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				v = i
			} else if f, err := n.Float64(); err == nil {
				v = f
			}
		}
		out[col] = v
	}
	return out
}

// LoadGolden loads expected test output from a golden file.
// The path is relative to the test package directory.
func LoadGolden(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load golden file from %s: %v", path, err)
	}

	return data
}

// WriteGolden writes test output to a golden file.
// This should typically only be called when updating golden files.
func WriteGolden(t testing.TB, path string, data []byte) {
	t.Helper()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write golden file to %s: %v", path, err)
	}
}

// CompareWithGolden compares actual data with expected data from a golden file.
// If the golden file doesn't exist, it creates one with the actual data.
func CompareWithGolden(t testing.TB, path string, actual []byte) {
	t.Helper()

	expected, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.Logf("Golden file %s does not exist, creating it", path)
			WriteGolden(t, path, actual)
			return
		}
		t.Fatalf("failed to read golden file %s: %v", path, err)
	}

	if string(actual) != string(expected) {
		t.Errorf("output mismatch for %s:\nExpected:\n%s\nActual:\n%s", path, expected, actual)
	}
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// GoldenPath constructs a path to a golden file relative to the testdata directory.
func GoldenPath(filename string) string {
	return filepath.Join("testdata", "golden", filename)
}

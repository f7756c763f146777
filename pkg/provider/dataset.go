package provider

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"

	"github.com/sandrolain/searchexpr/pkg/types"
)

// RecordSchema is the JSON schema a dataset must satisfy when no other
// schema is configured.
const RecordSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["id"],
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"label": {"type": "string"},
			"description": {"type": "string"},
			"score": {"type": "integer"},
			"provider": {"type": "string"},
			"fields": {"type": "object"}
		}
	}
}`

// Dataset loads JSON record lists validated against a JSON schema.
type Dataset struct {
	schema *gojsonschema.Schema
}

// NewDataset compiles schema. An empty schema selects RecordSchema.
func NewDataset(schema string) (*Dataset, error) {
	if strings.TrimSpace(schema) == "" {
		schema = RecordSchema
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return nil, errors.Wrap(err, "invalid json schema")
	}
	return &Dataset{schema: compiled}, nil
}

// NewDatasetFromFile compiles the schema stored at path.
func NewDatasetFromFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read schema %s", path)
	}
	return NewDataset(string(data))
}

// Validate checks a decoded document against the schema.
func (d *Dataset) Validate(doc interface{}) error {
	result, err := d.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return errors.Wrap(err, "schema validation error")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return errors.Errorf("dataset invalid against schema: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// Read decodes and validates a JSON array of records.
func (d *Dataset) Read(r io.Reader) ([]*types.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read dataset")
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse dataset")
	}
	if err := d.Validate(doc); err != nil {
		return nil, err
	}
	var records []*types.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, "failed to decode records")
	}
	return records, nil
}

// Load reads the dataset file at path.
func (d *Dataset) Load(path string) ([]*types.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open dataset %s", path)
	}
	defer f.Close()
	records, err := d.Read(f)
	return records, errors.Wrapf(err, "dataset %s", path)
}

// LoadDataset reads the dataset at path with the default record schema.
func LoadDataset(path string) ([]*types.Record, error) {
	d, err := NewDataset("")
	if err != nil {
		return nil, err
	}
	return d.Load(path)
}

package checklist

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	appfs "github.com/trezcool/eicr/fs"
)

// DefaultPath is the embedded BS 7671 catalogue.
const DefaultPath = "assets/checklist/bs7671.yaml"

// Parse decodes a single YAML catalogue document. Unknown fields are rejected.
func Parse(data []byte) (*Catalogue, error) {
	var doc Document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "parsing catalogue")
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, errors.New("parsing catalogue: multiple documents are not supported")
		}
		return nil, errors.Wrap(err, "parsing catalogue")
	}
	return New(doc)
}

// Load reads and parses the catalogue file at path.
func Load(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading catalogue")
	}
	return Parse(data)
}

// Default returns the embedded BS 7671 catalogue.
func Default() (*Catalogue, error) {
	data, err := appfs.FS.ReadFile(DefaultPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading embedded catalogue")
	}
	return Parse(data)
}

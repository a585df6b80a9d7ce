package registrar

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/greenhouse-catalog/internal/catalog"
)

// LoadIdentity reads the peer's own record from a YAML file.
//
// Example file for a device agent:
//
//	id: 12
//	name: dht11-north
//	greenhouse: "1"
//	endpoints: [MQTT]
//	endpoints_details:
//	  - topic: greenhouse/1/12
//	resources: [temperature, humidity]
//
// A missing id means the registrar allocates one on first registration.
func LoadIdentity(path string) (catalog.Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing identity file: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return catalog.Document(doc), nil
}

// SaveIdentity writes doc to path atomically (temp file, then rename).
func SaveIdentity(path string, doc catalog.Document) error {
	data, err := yaml.Marshal(map[string]any(doc))
	if err != nil {
		return fmt.Errorf("encoding identity: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".identity-*.yaml")
	if err != nil {
		return fmt.Errorf("creating identity temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // Gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("writing identity: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing identity temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing identity file: %w", err)
	}
	return nil
}

package catalog

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is the content of the optional seed file applied at startup:
// singleton pointers the catalog should know about before any peer
// registers them, and static records.
//
//	broker:
//	  ip: 192.168.1.10
//	  port_n: 1883
//	records:
//	  greenhouses:
//	    - {id: 1, name: north, plant_id: 3, plant_needs: {water: 2}}
type Seed struct {
	Broker        Document                  `yaml:"broker"`
	DeviceCatalog Document                  `yaml:"device_catalog"`
	Records       map[Collection][]Document `yaml:"records"`
}

// LoadSeed reads a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	for c := range seed.Records {
		if !c.Valid() {
			return nil, fmt.Errorf("seed file: %w: %q", ErrUnknownCollection, c)
		}
	}
	return &seed, nil
}

// Seed upserts every entry of seed: slots and records are created when
// absent and updated otherwise, which also refreshes their last_update.
// Calling it periodically keeps seeded entries from expiring.
func (s *Store) Seed(seed *Seed) error {
	if seed == nil {
		return nil
	}

	var errs []error
	for slot, doc := range map[Slot]Document{Broker: seed.Broker, DeviceCatalog: seed.DeviceCatalog} {
		if len(doc) == 0 {
			continue
		}
		err := s.WriteSingleton(slot, doc, ModeUpdate)
		if errors.Is(err, ErrSlotEmpty) {
			err = s.WriteSingleton(slot, doc, ModeCreate)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("seeding %s: %w", slot, err))
		}
	}

	for _, c := range AllCollections() {
		for _, doc := range seed.Records[c] {
			_, err := s.Update(c, doc)
			if errors.Is(err, ErrRecordNotFound) {
				_, err = s.Create(c, doc)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("seeding %s: %w", c.Item(), err))
			}
		}
	}
	return errors.Join(errs...)
}

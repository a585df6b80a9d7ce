package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testSeed = `
broker:
  ip: 192.168.1.10
  port_n: 1883
records:
  greenhouses:
    - id: 1
      name: north
      plant_id: 3
      plant_needs:
        water: 2
        light: high
`

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSeedAndApply(t *testing.T) {
	seed, err := LoadSeed(writeSeed(t, testSeed))
	if err != nil {
		t.Fatalf("LoadSeed() error = %v", err)
	}

	s, clock, _ := newTestStore(t)
	if err := s.Seed(seed); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	broker := s.ReadSingleton(Broker)
	if !broker.Present || broker.Record.String("ip") != "192.168.1.10" || broker.Record.String("port_n") != "1883" {
		t.Errorf("broker = %+v", broker)
	}
	gh, ok, err := s.Find(Greenhouses, FieldPlantID, "3")
	if err != nil || !ok || gh.ID != 1 {
		t.Fatalf("seeded greenhouse = %+v, %v, %v", gh, ok, err)
	}

	// Re-applying refreshes instead of failing on the existing entries.
	first := broker.Record.LastUpdate
	clock.Advance(time.Minute)
	if err := s.Seed(seed); err != nil {
		t.Fatalf("second Seed() error = %v", err)
	}
	if !s.ReadSingleton(Broker).Record.LastUpdate.After(first) {
		t.Error("re-seeding did not refresh the broker slot")
	}
	if n := len(s.List(Greenhouses)); n != 1 {
		t.Errorf("greenhouses = %d, want 1", n)
	}
}

func TestLoadSeed_Errors(t *testing.T) {
	if _, err := LoadSeed(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
	if _, err := LoadSeed(writeSeed(t, "records:\n  sensors: []\n")); !errors.Is(err, ErrUnknownCollection) {
		t.Errorf("unknown collection error = %v", err)
	}
}

func TestSeed_InvalidRecordReported(t *testing.T) {
	s, _, _ := newTestStore(t)
	err := s.Seed(&Seed{Records: map[Collection][]Document{Services: {{"id": 1}}}})
	if !errors.Is(err, ErrMissingField) {
		t.Errorf("Seed() error = %v, want ErrMissingField", err)
	}
}

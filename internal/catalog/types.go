package catalog

import (
	"fmt"
	"strings"
	"time"
)

// Collection names an ordinary collection of records.
type Collection string

// Collections held by the catalog.
const (
	Devices     Collection = "devices"
	Users       Collection = "users"
	Greenhouses Collection = "greenhouses"
	Services    Collection = "services"
)

// AllCollections returns every collection in a stable order.
func AllCollections() []Collection {
	return []Collection{Devices, Users, Greenhouses, Services}
}

// Slot names a singleton pointer that holds zero or one record.
type Slot string

// Singleton slots held by the catalog.
const (
	Broker        Slot = "broker"
	DeviceCatalog Slot = "device_catalog"
)

// AllSlots returns every slot in a stable order.
func AllSlots() []Slot {
	return []Slot{Broker, DeviceCatalog}
}

// Field names a searchable record field.
type Field string

// Searchable fields. Each collection accepts a subset (see Searchable).
const (
	FieldID         Field = "id"
	FieldName       Field = "name"
	FieldGreenhouse Field = "greenhouse"
	FieldPlantID    Field = "plant_id"
	FieldEmail      Field = "email_addr"
)

// Mode selects create or update semantics for WriteSingleton.
type Mode int

// Singleton write modes.
const (
	ModeCreate Mode = iota
	ModeUpdate
)

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// Document is a record as submitted by a caller: raw decoded fields,
// including "id" for collection writes. Fields outside the required set are
// dropped when the document is stored.
type Document map[string]any

var requiredFields = map[Collection][]string{
	Devices:     {"id", "name", "endpoints", "endpoints_details", "greenhouse", "resources"},
	Users:       {"id", "user_name", "user_surname", "email_addr", "greenhouse"},
	Greenhouses: {"id", "name", "plant_id", "plant_needs"},
	Services:    {"id", "name", "endpoints", "endpoints_details"},
}

var slotFields = map[Slot][]string{
	Broker:        {"ip", "port_n"},
	DeviceCatalog: {"ip", "port"},
}

var searchable = map[Collection][]Field{
	Devices:     {FieldID, FieldName, FieldGreenhouse},
	Users:       {FieldID, FieldEmail, FieldGreenhouse},
	Greenhouses: {FieldID, FieldName, FieldPlantID},
	Services:    {FieldID, FieldName},
}

var itemNames = map[Collection]string{
	Devices:     "device",
	Users:       "user",
	Greenhouses: "greenhouse",
	Services:    "service",
}

// RequiredFields returns the fields a record of c must carry, "id" first.
func (c Collection) RequiredFields() []string {
	return append([]string(nil), requiredFields[c]...)
}

// Item returns the singular name used in request paths, e.g. "device".
func (c Collection) Item() string {
	return itemNames[c]
}

// Valid reports whether c is one of the known collections.
func (c Collection) Valid() bool {
	_, ok := requiredFields[c]
	return ok
}

// Searchable returns the fields Find accepts for c.
func (c Collection) Searchable() []Field {
	return append([]Field(nil), searchable[c]...)
}

// RequiredFields returns the fields a record in s must carry.
func (s Slot) RequiredFields() []string {
	return append([]string(nil), slotFields[s]...)
}

// Valid reports whether s is one of the known slots.
func (s Slot) Valid() bool {
	_, ok := slotFields[s]
	return ok
}

// ParseCollection accepts either the plural collection name or its item name.
func ParseCollection(name string) (Collection, bool) {
	c := Collection(name)
	if c.Valid() {
		return c, true
	}
	for coll, item := range itemNames {
		if item == name {
			return coll, true
		}
	}
	return "", false
}

// ParseSlot returns the slot called name.
func ParseSlot(name string) (Slot, bool) {
	s := Slot(name)
	return s, s.Valid()
}

// ParseField resolves a lookup key for c. Keys are case-insensitive so
// "ID" and "id" are the same field.
func ParseField(c Collection, key string) (Field, error) {
	f := Field(strings.ToLower(key))
	for _, allowed := range searchable[c] {
		if f == allowed {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q for %s", ErrUnknownField, key, c)
}

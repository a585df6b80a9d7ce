package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// TimeFormat is the wire and snapshot layout of last_update.
const TimeFormat = "2006-01-02 15:04:05"

const (
	keyID         = "id"
	keyLastUpdate = "last_update"
)

// Record is one stored entity. Fields holds only the required fields of its
// collection, without "id". LastUpdate is stamped by the store.
//
// The JSON form is flat: {"id": 7, "name": ..., "last_update": "2026-01-02 15:04:05"}.
type Record struct {
	ID         int64
	Fields     map[string]any
	LastUpdate time.Time
}

// Get returns the named field. "id" and "last_update" are answered too.
func (r Record) Get(name string) (any, bool) {
	switch name {
	case keyID:
		return r.ID, true
	case keyLastUpdate:
		return r.LastUpdate.Format(TimeFormat), true
	}
	v, ok := r.Fields[name]
	return v, ok
}

// String returns a field rendered as text, or "" when absent.
func (r Record) String(name string) string {
	v, ok := r.Get(name)
	if !ok || v == nil {
		return ""
	}
	return valueString(v)
}

// MarshalJSON renders the flat wire form.
func (r Record) MarshalJSON() ([]byte, error) {
	return marshalFlat(r.Fields, &r.ID, r.LastUpdate)
}

// UnmarshalJSON reads the flat form written by MarshalJSON.
func (r *Record) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	id, err := ParseID(fields[keyID])
	if err != nil {
		return err
	}
	ts, err := parseLastUpdate(fields[keyLastUpdate])
	if err != nil {
		return err
	}
	delete(fields, keyID)
	delete(fields, keyLastUpdate)

	r.ID = id
	r.Fields = fields
	r.LastUpdate = ts
	return nil
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	return Record{
		ID:         r.ID,
		Fields:     cloneMap(r.Fields),
		LastUpdate: r.LastUpdate,
	}
}

// Singleton is the content of a slot: either empty or one record.
// Slot records carry no id.
type Singleton struct {
	Present bool
	Record  Record
}

// MarshalJSON renders {} for an empty slot, else the flat record without id.
func (s Singleton) MarshalJSON() ([]byte, error) {
	if !s.Present {
		return []byte("{}"), nil
	}
	return marshalFlat(s.Record.Fields, nil, s.Record.LastUpdate)
}

// UnmarshalJSON treats {} and null as an empty slot.
func (s *Singleton) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		*s = Singleton{}
		return nil
	}
	ts, err := parseLastUpdate(fields[keyLastUpdate])
	if err != nil {
		return err
	}
	delete(fields, keyLastUpdate)
	delete(fields, keyID)
	*s = Singleton{Present: true, Record: Record{Fields: fields, LastUpdate: ts}}
	return nil
}

// Clone returns a deep copy of s.
func (s Singleton) Clone() Singleton {
	if !s.Present {
		return Singleton{}
	}
	return Singleton{Present: true, Record: s.Record.Clone()}
}

func marshalFlat(fields map[string]any, id *int64, lastUpdate time.Time) ([]byte, error) {
	out := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	if id != nil {
		out[keyID] = *id
	}
	out[keyLastUpdate] = lastUpdate.Format(TimeFormat)
	return json.Marshal(out)
}

// decodeObject decodes a single JSON object keeping numbers as json.Number
// so ids and integral values survive unchanged. Anything but whitespace
// after the object is ErrTrailingData.
func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, ErrTrailingData
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// DecodeDocument parses a request body into a Document.
func DecodeDocument(data []byte) (Document, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	return Document(fields), nil
}

func parseLastUpdate(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}, nil
	}
	ts, err := time.ParseInLocation(TimeFormat, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing last_update %q: %w", s, err)
	}
	return ts, nil
}

// ParseID accepts any integral JSON or YAML number, or a decimal string,
// and rejects negative values with ErrInvalidID.
func ParseID(v any) (int64, error) {
	var (
		id  int64
		err error
	)
	switch n := v.(type) {
	case nil:
		return 0, fmt.Errorf("%w: id", ErrMissingField)
	case json.Number:
		id, err = n.Int64()
	case int:
		id = int64(n)
	case int64:
		id = n
	case uint64:
		if n > math.MaxInt64 {
			err = fmt.Errorf("out of range")
		}
		id = int64(n)
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
		if n != math.Trunc(n) || n >= math.MaxInt64 || n < math.MinInt64 {
			err = fmt.Errorf("not an integer")
		}
		id = int64(n)
	case string:
		id, err = strconv.ParseInt(n, 10, 64)
	default:
		err = fmt.Errorf("unsupported type %T", v)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidID, v)
	}
	if id < 0 {
		return 0, fmt.Errorf("%w: %d is negative", ErrInvalidID, id)
	}
	return id, nil
}

// valueString renders a stored value the way it appears in a query string.
func valueString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case Document:
		return cloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = cloneValue(x[i])
		}
		return out
	default:
		return v
	}
}

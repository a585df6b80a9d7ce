package locator

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/nerrad567/greenhouse-catalog/internal/catalog"
)

// errNoAddress means a record exists but carries no usable host and port.
var errNoAddress = errors.New("locator: record has no address")

// Address is a resolved network location.
type Address struct {
	Host string
	Port int
}

// String returns host:port.
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// URL returns the address as an http base URL.
func (a Address) URL() string {
	return "http://" + a.String()
}

// IsZero reports whether a holds nothing.
func (a Address) IsZero() bool {
	return a.Host == "" && a.Port == 0
}

// addressFromFields reads host and port out of a record. portKey is the
// name of the port field ("port" or "port_n" for the broker).
func addressFromFields(fields map[string]any, portKey string) (Address, error) {
	host, _ := fields["ip"].(string)
	host = strings.TrimSpace(host)
	if host == "" {
		return Address{}, fmt.Errorf("%w: missing ip", errNoAddress)
	}
	port, err := portValue(fields[portKey])
	if err != nil {
		return Address{}, fmt.Errorf("%w: %s: %w", errNoAddress, portKey, err)
	}
	return Address{Host: host, Port: port}, nil
}

// serviceAddress extracts the REST address of a service record. The
// endpoints_details field is either one {ip, port} object or a list of
// them, optionally tagged with "endpoint"; a REST-tagged entry wins.
func serviceAddress(rec catalog.Record) (Address, error) {
	switch details := rec.Fields["endpoints_details"].(type) {
	case map[string]any:
		return addressFromFields(details, "port")
	case []any:
		var fallback *Address
		for _, d := range details {
			m, ok := d.(map[string]any)
			if !ok {
				continue
			}
			addr, err := addressFromFields(m, "port")
			if err != nil {
				continue
			}
			if tag, _ := m["endpoint"].(string); strings.EqualFold(tag, "REST") {
				return addr, nil
			}
			if fallback == nil {
				fallback = &addr
			}
		}
		if fallback != nil {
			return *fallback, nil
		}
	}
	return Address{}, fmt.Errorf("%w: service %d", errNoAddress, rec.ID)
}

func portValue(v any) (int, error) {
	var s string
	switch p := v.(type) {
	case nil:
		return 0, errors.New("missing")
	case string:
		s = p
	default:
		s = fmt.Sprint(p)
	}
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %v", v)
	}
	return port, nil
}

// Package datasource models database connection definitions held locally or
// reported by a remote server, and compares the two.
package datasource

import (
	"fmt"
	"strings"
)

// AccessKind is the way a connection reaches its database.
type AccessKind int

const (
	AccessNative AccessKind = iota
	AccessJNDI
	AccessODBC
	AccessOCI
	AccessPlugin
)

func (k AccessKind) String() string {
	switch k {
	case AccessNative:
		return "native"
	case AccessJNDI:
		return "jndi"
	case AccessODBC:
		return "odbc"
	case AccessOCI:
		return "oci"
	case AccessPlugin:
		return "plugin"
	default:
		return fmt.Sprintf("access(%d)", int(k))
	}
}

// ParseAccessKind normalizes an access kind label. An empty label means native.
func ParseAccessKind(s string) (AccessKind, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "", "native", "jdbc":
		return AccessNative, nil
	case "jndi":
		return AccessJNDI, nil
	case "odbc":
		return AccessODBC, nil
	case "oci":
		return AccessOCI, nil
	case "plugin":
		return AccessPlugin, nil
	default:
		return AccessNative, fmt.Errorf("unknown access kind: %q", s)
	}
}

// Definition is a named database access definition. Treat it as a value:
// nothing in this module mutates a Definition after construction.
type Definition struct {
	Name        string
	URL         string
	Username    string
	Password    string
	DriverClass string
	Access      AccessKind
}

// NormalizeName maps a local connection name onto the character set the
// server accepts for connection names. Letters, digits, '_' and '-' are kept;
// everything else becomes '_'.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, name)
}

package datasource

// Comparison classifies a local definition against its remote counterpart.
// Exactly one classification holds per comparison.
type Comparison int

const (
	// Missing means no remote connection exists under the normalized name.
	Missing Comparison = iota + 1
	// Same means url, username and driver class all match.
	Same
	// Different means a remote connection exists but does not match.
	Different
	// MustBeJNDI means the local definition is not native and cannot be
	// compared or published.
	MustBeJNDI
)

func (c Comparison) String() string {
	switch c {
	case Missing:
		return "missing"
	case Same:
		return "same"
	case Different:
		return "different"
	case MustBeJNDI:
		return "must-be-jndi"
	default:
		return "unknown"
	}
}

// LookupFunc fetches the remote definition with the given (normalized) name.
// It reports false when the server has no such connection.
type LookupFunc func(name string) (Definition, bool)

// Compare classifies local against the remote definition returned by lookup.
// Non-native definitions short-circuit to MustBeJNDI without calling lookup.
func Compare(local Definition, lookup LookupFunc) Comparison {
	if local.Access != AccessNative {
		return MustBeJNDI
	}

	remote, ok := lookup(NormalizeName(local.Name))
	if !ok {
		return Missing
	}

	urlMatch := local.URL == remote.URL
	userMatch := local.Username == remote.Username
	driverMatch := local.DriverClass == remote.DriverClass
	if urlMatch && userMatch && driverMatch {
		return Same
	}
	return Different
}

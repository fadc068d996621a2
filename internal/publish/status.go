// Package publish reconciles a local OLAP model with a BI server and uploads
// its datasource connection, schema document and metadata document.
package publish

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Status is the normalized outcome of one publish step.
type Status int

const (
	StatusUnknownProblem Status = iota
	StatusFileExists
	StatusFailed
	StatusSuccess
	StatusInvalidPassword
	StatusInvalidUserOrPassword
	StatusDatasourceProblem
	StatusCatalogExists
	StatusDriverMissing
)

var statusNames = map[Status]string{
	StatusUnknownProblem:        "unknown-problem",
	StatusFileExists:            "file-exists",
	StatusFailed:                "failed",
	StatusSuccess:               "success",
	StatusInvalidPassword:       "invalid-password",
	StatusInvalidUserOrPassword: "invalid-user-or-password",
	StatusDatasourceProblem:     "datasource-problem",
	StatusCatalogExists:         "catalog-exists",
	StatusDriverMissing:         "driver-missing",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Numeric result codes used by the server's data-access endpoints.
var wireCodes = map[int]Status{
	-1: StatusUnknownProblem,
	1:  StatusFileExists,
	2:  StatusFailed,
	3:  StatusSuccess,
	4:  StatusInvalidPassword,
	5:  StatusInvalidUserOrPassword,
	6:  StatusDatasourceProblem,
	8:  StatusCatalogExists,
	9:  StatusDriverMissing,
}

// parseWireStatus reads a numeric result code from a response body. Bodies
// that are not a known code report false.
func parseWireStatus(body []byte) (Status, bool) {
	code, err := strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil {
		return StatusUnknownProblem, false
	}
	s, ok := wireCodes[code]
	return s, ok
}

// statusFromHTTP maps the HTTP status of a repository file import.
func statusFromHTTP(code int) Status {
	switch {
	case code >= 200 && code < 300:
		return StatusSuccess
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return StatusInvalidUserOrPassword
	case code == http.StatusConflict:
		return StatusFileExists
	default:
		return StatusFailed
	}
}

// Severity grades a user notification.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	default:
		return "error"
	}
}

// Message returns the user-facing text for s. Statuses without a dedicated
// message fall back to the unknown-problem text.
func (s Status) Message() string {
	switch s {
	case StatusSuccess:
		return "Publish succeeded."
	case StatusFileExists:
		return "A file with the same name already exists in the repository."
	case StatusFailed:
		return "Publish failed."
	case StatusInvalidPassword:
		return "The publish password is invalid."
	case StatusInvalidUserOrPassword:
		return "The server user name or password is invalid."
	case StatusDatasourceProblem:
		return "The server could not use the datasource of this model."
	case StatusCatalogExists:
		return "A catalog with the same name already exists on the server."
	case StatusDriverMissing:
		return "The server is missing the JDBC driver for this datasource."
	default:
		return "Publish failed because of an unknown problem."
	}
}

// Severity returns the notification level for s.
func (s Status) Severity() Severity {
	switch s {
	case StatusSuccess:
		return SeverityInfo
	case StatusCatalogExists, StatusFileExists:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// ArtifactKind names what a Result is about.
type ArtifactKind string

const (
	ArtifactFile       ArtifactKind = "file"
	ArtifactDatasource ArtifactKind = "datasource"
	ArtifactSchema     ArtifactKind = "schema"
	ArtifactMetadata   ArtifactKind = "metadata"
)

// Result is the outcome of a single publish step.
type Result struct {
	Status   Status
	Artifact ArtifactKind
	Message  string
}

// OK reports whether the step succeeded.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

func (r Result) String() string {
	if r.Message == "" {
		return fmt.Sprintf("%s: %s", r.Artifact, r.Status)
	}
	return fmt.Sprintf("%s: %s (%s)", r.Artifact, r.Status, r.Message)
}

// Package model loads analysis model manifests and exports the documents a
// publish run uploads.
package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/kamusis/cubepub/internal/datasource"
	"github.com/kamusis/cubepub/internal/dbeaver"
	"github.com/kamusis/cubepub/internal/publish"
)

// Manifest describes one model:
//
//	name: Sales
//	catalog: Sales
//	domain_id: Sales.xmi
//	schema: sales.mondrian.xml
//	metadata: sales.xmi
//	datasource:
//	  name: SalesDB
//	  url: jdbc:postgresql://db:5432/sales
//	  username: etl
//	  password: ${SALES_DB_PASSWORD}
//	  driver_class: org.postgresql.Driver
//	  access: native
//
// A `dbeaver: {project, connection}` block may replace the inline datasource.
// Relative paths resolve against the manifest's directory.
type Manifest struct {
	Name       string          `yaml:"name"`
	Catalog    string          `yaml:"catalog"`
	DomainID   string          `yaml:"domain_id"`
	Schema     string          `yaml:"schema"`
	Metadata   string          `yaml:"metadata"`
	Inline     *DatasourceSpec `yaml:"datasource"`
	DBeaver    *DBeaverRef     `yaml:"dbeaver"`

	path     string
	resolved *datasource.Definition
}

// DatasourceSpec is the inline datasource block.
type DatasourceSpec struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	DriverClass string `yaml:"driver_class"`
	Access      string `yaml:"access"`
}

// DBeaverRef points at a connection inside a DBeaver project export.
type DBeaverRef struct {
	Project    string `yaml:"project"`
	Connection string `yaml:"connection"`
}

var _ publish.Model = (*Manifest)(nil)

// Load reads and validates the manifest at path and resolves its datasource.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	if err := m.resolveDatasource(); err != nil {
		return nil, err
	}
	return m, nil
}

// Parse decodes and validates manifest data. path anchors relative
// document paths and appears in error messages.
func Parse(data []byte, path string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshaling manifest from %s: %w", path, err)
	}
	m.path = path

	if m.Name == "" {
		return nil, &publish.ValidationError{Field: "name", Message: fmt.Sprintf("manifest %s has no name", path)}
	}
	if m.Schema == "" {
		return nil, &publish.ValidationError{Field: "schema", Message: fmt.Sprintf("manifest %s has no schema document", path)}
	}
	if m.Metadata == "" {
		return nil, &publish.ValidationError{Field: "metadata", Message: fmt.Sprintf("manifest %s has no metadata document", path)}
	}
	if m.Inline != nil && m.DBeaver != nil {
		return nil, &publish.ValidationError{Field: "datasource", Message: "use either datasource or dbeaver, not both"}
	}
	if m.Catalog == "" {
		m.Catalog = m.Name
	}
	return &m, nil
}

func (m *Manifest) resolveDatasource() error {
	switch {
	case m.Inline != nil:
		access, err := datasource.ParseAccessKind(m.Inline.Access)
		if err != nil {
			return &publish.ValidationError{Field: "datasource.access", Message: err.Error()}
		}
		m.resolved = &datasource.Definition{
			Name:        m.Inline.Name,
			URL:         m.Inline.URL,
			Username:    m.Inline.Username,
			Password:    os.ExpandEnv(m.Inline.Password),
			DriverClass: m.Inline.DriverClass,
			Access:      access,
		}
	case m.DBeaver != nil:
		def, err := dbeaver.LoadDefinition(m.resolvePath(m.DBeaver.Project), m.DBeaver.Connection)
		if err != nil {
			return fmt.Errorf("failed to load datasource from DBeaver project: %w", err)
		}
		m.resolved = &def
	}
	if m.resolved != nil && m.resolved.Name == "" {
		return &publish.ValidationError{Field: "datasource.name", Message: "datasource has no name"}
	}
	return nil
}

func (m *Manifest) ModelName() string {
	return m.Name
}

// Datasource returns the resolved datasource, if the manifest names one.
func (m *Manifest) Datasource() (datasource.Definition, bool) {
	if m.resolved == nil {
		return datasource.Definition{}, false
	}
	return *m.resolved, true
}

// SchemaPath returns the absolute or manifest-relative schema document path.
func (m *Manifest) SchemaPath() string {
	return m.resolvePath(m.Schema)
}

func (m *Manifest) MetadataPath() string {
	return m.resolvePath(m.Metadata)
}

// Target describes where this model goes on server.
func (m *Manifest) Target(server, stagingDir string) publish.Target {
	return publish.Target{
		ServerName:     server,
		CatalogName:    m.Catalog,
		DomainID:       m.DomainID,
		SchemaFileName: filepath.Base(m.Schema),
		StagingDir:     stagingDir,
	}
}

func (m *Manifest) resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(m.path), p)
}

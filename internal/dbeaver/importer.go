package dbeaver

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/kamusis/cubepub/internal/config"
	"github.com/kamusis/cubepub/internal/datasource"
)

// ParseDBP parses a DBeaver .dbp file and returns the archive structure
func ParseDBP(path string) (*DBPArchive, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dbp file: %w", err)
	}
	defer reader.Close()

	archive := &DBPArchive{}

	for _, file := range reader.File {
		if file.Name == "meta.xml" {
			archive.MetaXML, err = readEntry(file)
			if err != nil {
				return nil, fmt.Errorf("failed to read meta.xml: %w", err)
			}
			break
		}
	}

	dataSources, err := ExtractDataSources(&reader.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to extract data-sources.json: %w", err)
	}
	archive.DataSources = dataSources

	creds, err := ExtractCredentials(&reader.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to extract credentials-config.json: %w", err)
	}
	archive.Credentials = creds

	return archive, nil
}

func readEntry(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ExtractDataSources extracts and parses data-sources.json from a zip archive
func ExtractDataSources(zipReader *zip.Reader) (*DataSources, error) {
	for _, file := range zipReader.File {
		if !strings.HasSuffix(file.Name, "data-sources.json") {
			continue
		}
		data, err := readEntry(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read data-sources.json: %w", err)
		}

		var dataSources DataSources
		if err := json.Unmarshal(data, &dataSources); err != nil {
			return nil, fmt.Errorf("failed to parse data-sources.json: %w", err)
		}
		return &dataSources, nil
	}

	return nil, fmt.Errorf("data-sources.json not found in archive")
}

// ExtractCredentials decrypts credentials-config.json when the project
// carries one. Projects exported without saved passwords have none.
func ExtractCredentials(zipReader *zip.Reader) (map[string]SecureCredentials, error) {
	for _, file := range zipReader.File {
		if !strings.HasSuffix(file.Name, "credentials-config.json") {
			continue
		}
		data, err := readEntry(file)
		if err != nil {
			return nil, err
		}
		plain, err := config.Decrypt(data)
		if err != nil {
			return nil, err
		}

		var creds map[string]SecureCredentials
		if err := json.Unmarshal(plain, &creds); err != nil {
			return nil, err
		}
		return creds, nil
	}
	return map[string]SecureCredentials{}, nil
}

// FindConnection returns the connection whose name or ID is name, with its ID.
func (a *DBPArchive) FindConnection(name string) (string, DBeaverConnection, error) {
	if a.DataSources == nil {
		return "", DBeaverConnection{}, fmt.Errorf("project has no data sources")
	}
	if conn, ok := a.DataSources.Connections[name]; ok {
		return name, conn, nil
	}

	ids := make([]string, 0, len(a.DataSources.Connections))
	for id := range a.DataSources.Connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if a.DataSources.Connections[id].Name == name {
			return id, a.DataSources.Connections[id], nil
		}
	}
	return "", DBeaverConnection{}, fmt.Errorf("connection %q not found in project", name)
}

// ConvertConnection converts a DBeaver connection to a datasource definition.
// Saved credentials for id, when present, take precedence over the plain
// configuration fields.
func (a *DBPArchive) ConvertConnection(id string, conn DBeaverConnection) datasource.Definition {
	jdbcURL := conn.Configuration.URL
	if jdbcURL == "" {
		jdbcURL = BuildJDBCURL(conn)
	}
	dbType := InferDBType(conn.Provider, jdbcURL)

	def := datasource.Definition{
		Name:        conn.Name,
		URL:         jdbcURL,
		Username:    conn.Configuration.User,
		Password:    conn.Configuration.Password,
		DriverClass: DriverClass(dbType),
		Access:      datasource.AccessNative,
	}

	if creds, ok := a.Credentials[id]; ok {
		if creds.Connection.User != "" {
			def.Username = creds.Connection.User
		}
		if creds.Connection.Password != "" {
			def.Password = creds.Connection.Password
		}
	}
	return def
}

// LoadDefinition reads the connection called name from a .dbp project.
func LoadDefinition(path, name string) (datasource.Definition, error) {
	archive, err := ParseDBP(path)
	if err != nil {
		return datasource.Definition{}, err
	}
	id, conn, err := archive.FindConnection(name)
	if err != nil {
		return datasource.Definition{}, err
	}
	return archive.ConvertConnection(id, conn), nil
}

// InferDBType infers the canonical database name from provider and JDBC URL
func InferDBType(provider, jdbcURL string) string {
	// Prefer the JDBC sub-protocol; provider labels can be misleading
	// (e.g. Sybase using provider=mssql).
	if strings.HasPrefix(jdbcURL, "jdbc:") {
		rest := strings.TrimPrefix(jdbcURL, "jdbc:")
		if idx := strings.Index(rest, ":"); idx != -1 {
			if protocol := strings.TrimSpace(rest[:idx]); protocol != "" {
				return NormalizeDbType(protocol)
			}
		}
	}
	return NormalizeDbType(provider)
}

// BuildJDBCURL assembles a URL from host, port and database for connections
// configured field by field instead of with a URL.
// Example: provider=postgresql host=db port=5432 database=sales → jdbc:postgresql://db:5432/sales
func BuildJDBCURL(conn DBeaverConnection) string {
	c := conn.Configuration
	if c.Host == "" {
		return ""
	}
	protocol := strings.ToLower(strings.TrimSpace(conn.Provider))
	authority := c.Host
	if c.Port != "" {
		authority += ":" + c.Port
	}
	if protocol == "oracle" {
		return "jdbc:oracle:thin:@//" + authority + "/" + c.Database
	}
	return "jdbc:" + protocol + "://" + authority + "/" + c.Database
}

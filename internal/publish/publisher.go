package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/kamusis/cubepub/internal/client"
	"github.com/kamusis/cubepub/internal/datasource"
	"github.com/rs/zerolog"
)

const (
	pathConnectionAdd    = "plugin/data-access/api/connection/add"
	pathConnectionUpdate = "plugin/data-access/api/connection/update"
	pathConnectionGet    = "plugin/data-access/api/connection/get"
	pathConnectionList   = "plugin/data-access/api/connection/list"
	pathSchemaUpload     = "plugin/data-access/api/mondrian/postAnalysis"
	pathMetadataImport   = "plugin/data-access/api/metadata/import"
	pathFileImport       = "api/repo/files/import"
)

// RemoteServerClient is the transport the publisher sends requests through.
// *client.Client satisfies it.
type RemoteServerClient interface {
	Get(ctx context.Context, path string) ([]byte, error)
	PostJSON(ctx context.Context, path string, body interface{}) ([]byte, error)
	PostMultipart(ctx context.Context, path string, fields []client.Field) (int, []byte, error)
	PutMultipart(ctx context.Context, path string, fields []client.Field) ([]byte, error)
}

// connection is the server's JSON representation of a datasource.
type connection struct {
	Name        string `json:"name"`
	DriverClass string `json:"driverClass"`
	URL         string `json:"url"`
	Username    string `json:"username"`
	Password    string `json:"password,omitempty"`
}

func (c connection) definition() datasource.Definition {
	return datasource.Definition{
		Name:        c.Name,
		URL:         c.URL,
		Username:    c.Username,
		Password:    c.Password,
		DriverClass: c.DriverClass,
		Access:      datasource.AccessNative,
	}
}

// ExistsFunc reports whether a file called name already exists at path in
// the server repository.
type ExistsFunc func(path, name string) (bool, error)

// OverwriteFunc decides whether an existing repository file may be replaced.
type OverwriteFunc func(path, name string) bool

// Publisher uploads single artifacts. Every method is one synchronous
// request attempt and reports its outcome as a Result; errors never escape.
type Publisher struct {
	client RemoteServerClient
	log    zerolog.Logger
}

func NewPublisher(c RemoteServerClient, log zerolog.Logger) *Publisher {
	return &Publisher{client: c, log: log}
}

// LookupDatasource fetches the server connection called name. Any failure,
// not only a 404, is reported as a missing connection.
func (p *Publisher) LookupDatasource(ctx context.Context, name string) (datasource.Definition, bool) {
	q := url.Values{}
	q.Set("name", name)
	body, err := p.client.Get(ctx, pathConnectionGet+"?"+q.Encode())
	if err != nil {
		if !client.IsNotFound(err) {
			p.log.Warn().Err(err).Str("connection", name).Msg("connection lookup failed, treating as missing")
		}
		return datasource.Definition{}, false
	}

	var conn connection
	if err := json.Unmarshal(body, &conn); err != nil || conn.Name == "" {
		p.log.Warn().Str("connection", name).Msg("connection lookup returned no usable definition")
		return datasource.Definition{}, false
	}
	return conn.definition(), true
}

// ListDatasources returns every connection defined on the server.
func (p *Publisher) ListDatasources(ctx context.Context) ([]datasource.Definition, error) {
	body, err := p.client.Get(ctx, pathConnectionList)
	if err != nil {
		return nil, &TransportError{Endpoint: pathConnectionList, Err: err}
	}

	var conns []connection
	if err := json.Unmarshal(body, &conns); err != nil {
		return nil, fmt.Errorf("failed to decode connection list: %w", err)
	}

	defs := make([]datasource.Definition, 0, len(conns))
	for _, c := range conns {
		defs = append(defs, c.definition())
	}
	return defs, nil
}

// PublishDatasource adds def to the server, or replaces the existing
// connection when isUpdate is set.
func (p *Publisher) PublishDatasource(ctx context.Context, def datasource.Definition, isUpdate bool) Result {
	endpoint := pathConnectionAdd
	if isUpdate {
		endpoint = pathConnectionUpdate
	}

	conn := connection{
		Name:        datasource.NormalizeName(def.Name),
		DriverClass: def.DriverClass,
		URL:         def.URL,
		Username:    def.Username,
		Password:    def.Password,
	}

	if _, err := p.client.PostJSON(ctx, endpoint, conn); err != nil {
		terr := &TransportError{Endpoint: endpoint, Err: err}
		p.log.Warn().Err(terr).Str("connection", conn.Name).Bool("update", isUpdate).Msg("datasource publish failed")
		return Result{Status: StatusFailed, Artifact: ArtifactDatasource, Message: terr.Error()}
	}

	p.log.Debug().Str("connection", conn.Name).Bool("update", isUpdate).Msg("datasource published")
	return Result{Status: StatusSuccess, Artifact: ArtifactDatasource, Message: conn.Name}
}

// PublishSchema uploads an analysis schema document for catalog. The server
// answers with a numeric result code; anything else is an unknown problem.
func (p *Publisher) PublishSchema(ctx context.Context, schema []byte, catalog, datasourceInfo string, overwrite bool) Result {
	fields := []client.Field{
		{Name: "parameters", Value: "Datasource=" + datasourceInfo},
		{Name: "uploadAnalysis", FileName: catalog, Content: bytes.NewReader(schema)},
		{Name: "catalogName", Value: catalog},
		{Name: "overwrite", Value: fmt.Sprintf("%t", overwrite)},
		{Name: "xmlaEnabledFlag", Value: "true"},
	}

	code, body, err := p.client.PostMultipart(ctx, pathSchemaUpload, fields)
	if err != nil {
		terr := &TransportError{Endpoint: pathSchemaUpload, Err: err}
		p.log.Warn().Err(terr).Str("catalog", catalog).Msg("schema publish failed")
		return Result{Status: StatusUnknownProblem, Artifact: ArtifactSchema, Message: terr.Error()}
	}
	if code >= 400 {
		p.log.Warn().Int("http_status", code).Str("catalog", catalog).Msg("schema publish rejected")
		return Result{Status: StatusUnknownProblem, Artifact: ArtifactSchema, Message: fmt.Sprintf("status=%d", code)}
	}

	status, ok := parseWireStatus(body)
	if !ok {
		return Result{Status: StatusUnknownProblem, Artifact: ArtifactSchema, Message: fmt.Sprintf("unexpected response %q", strings.TrimSpace(string(body)))}
	}

	p.log.Debug().Str("catalog", catalog).Bool("overwrite", overwrite).Stringer("status", status).Msg("schema published")
	return Result{Status: status, Artifact: ArtifactSchema, Message: catalog}
}

// PublishMetadata imports a metadata document under domainID.
func (p *Publisher) PublishMetadata(ctx context.Context, metadata []byte, domainID string) Result {
	fields := []client.Field{
		{Name: "domainId", Value: domainID},
		{Name: "metadataFile", FileName: domainID, Content: bytes.NewReader(metadata)},
	}

	body, err := p.client.PutMultipart(ctx, pathMetadataImport, fields)
	if err != nil {
		terr := &TransportError{Endpoint: pathMetadataImport, Err: err}
		p.log.Warn().Err(terr).Str("domain", domainID).Msg("metadata publish failed")
		return Result{Status: StatusFailed, Artifact: ArtifactMetadata, Message: "ERROR " + err.Error()}
	}

	if status, ok := parseWireStatus(body); ok {
		return Result{Status: status, Artifact: ArtifactMetadata, Message: domainID}
	}

	p.log.Debug().Str("domain", domainID).Msg("metadata published")
	return Result{Status: StatusSuccess, Artifact: ArtifactMetadata, Message: strings.TrimSpace(string(body))}
}

// PublishFile uploads local files into the repository folder repoPath. All
// collisions are resolved before the first upload; a refused overwrite
// returns FileExists and nothing is sent.
func (p *Publisher) PublishFile(ctx context.Context, repoPath string, files []string, exists ExistsFunc, overwrite OverwriteFunc) Result {
	if len(files) == 0 {
		return Result{Status: StatusFailed, Artifact: ArtifactFile, Message: (&ValidationError{Field: "files", Message: "no files to publish"}).Error()}
	}

	replace := make(map[string]bool, len(files))
	for _, f := range files {
		name := filepath.Base(f)
		if exists == nil {
			continue
		}
		found, err := exists(repoPath, name)
		if err != nil {
			p.log.Warn().Err(err).Str("file", name).Msg("existence check failed, assuming file is new")
			continue
		}
		if !found {
			continue
		}
		if overwrite == nil || !overwrite(repoPath, name) {
			return Result{Status: StatusFileExists, Artifact: ArtifactFile, Message: name}
		}
		replace[name] = true
	}

	result := Result{Status: StatusUnknownProblem, Artifact: ArtifactFile}
	for _, f := range files {
		result = p.uploadFile(ctx, repoPath, f, replace[filepath.Base(f)])
		if !result.OK() {
			return result
		}
	}
	return result
}

func (p *Publisher) uploadFile(ctx context.Context, repoPath, file string, replace bool) Result {
	name := filepath.Base(file)

	in, err := os.Open(file)
	if err != nil {
		verr := &ValidationError{Field: "file", Message: err.Error()}
		return Result{Status: StatusUnknownProblem, Artifact: ArtifactFile, Message: verr.Error()}
	}
	defer in.Close()

	fields := []client.Field{
		{Name: "importDir", Value: repoPath},
		{Name: "fileUpload", FileName: name, Content: in},
	}
	if replace {
		fields = append(fields, client.Field{Name: "overwriteFile", Value: "true"})
	}

	code, _, err := p.client.PostMultipart(ctx, pathFileImport, fields)
	if err != nil {
		terr := &TransportError{Endpoint: pathFileImport, Err: err}
		p.log.Warn().Err(terr).Str("file", name).Msg("file upload failed")
		return Result{Status: StatusUnknownProblem, Artifact: ArtifactFile, Message: terr.Error()}
	}

	status := statusFromHTTP(code)
	p.log.Debug().Str("file", name).Str("path", repoPath).Int("http_status", code).Msg("file uploaded")
	return Result{Status: status, Artifact: ArtifactFile, Message: name}
}

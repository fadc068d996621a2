package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/kamusis/cubepub/internal/client"
	"github.com/kamusis/cubepub/internal/datasource"
	"github.com/kamusis/cubepub/internal/repository"
	"github.com/rs/zerolog"
)

type call struct {
	Method string
	Path   string
	Body   []byte
	Form   map[string]string
	Files  map[string][]byte
}

// fakeServer is a scripted RemoteServerClient that records every call.
type fakeServer struct {
	calls []call

	remote       *connection
	lookupErr    error
	postJSONErr  error
	schemaBodies []string
	schemaErr    error
	schemaHTTP   int
	metadataBody string
	metadataErr  error
	fileHTTP     int
	fileErr      error
}

func (f *fakeServer) Get(_ context.Context, path string) ([]byte, error) {
	f.calls = append(f.calls, call{Method: "GET", Path: path})
	if strings.HasPrefix(path, pathConnectionList) {
		conns := []connection{}
		if f.remote != nil {
			conns = append(conns, *f.remote)
		}
		return json.Marshal(conns)
	}
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if f.remote == nil {
		return nil, &client.ApiError{Status: 404}
	}
	return json.Marshal(f.remote)
}

func (f *fakeServer) PostJSON(_ context.Context, path string, body interface{}) ([]byte, error) {
	b, _ := json.Marshal(body)
	f.calls = append(f.calls, call{Method: "POST", Path: path, Body: b})
	if f.postJSONErr != nil {
		return nil, f.postJSONErr
	}
	return []byte("ok"), nil
}

func record(method, path string, fields []client.Field) call {
	c := call{Method: method, Path: path, Form: map[string]string{}, Files: map[string][]byte{}}
	for _, fl := range fields {
		if fl.FileName != "" {
			b, _ := io.ReadAll(fl.Content)
			c.Files[fl.Name] = b
			continue
		}
		c.Form[fl.Name] = fl.Value
	}
	return c
}

func (f *fakeServer) PostMultipart(_ context.Context, path string, fields []client.Field) (int, []byte, error) {
	f.calls = append(f.calls, record("POST", path, fields))
	switch path {
	case pathSchemaUpload:
		if f.schemaErr != nil {
			return 0, nil, f.schemaErr
		}
		if f.schemaHTTP != 0 {
			return f.schemaHTTP, nil, nil
		}
		body := "3"
		if len(f.schemaBodies) > 0 {
			body, f.schemaBodies = f.schemaBodies[0], f.schemaBodies[1:]
		}
		return 200, []byte(body), nil
	case pathFileImport:
		if f.fileErr != nil {
			return 0, nil, f.fileErr
		}
		if f.fileHTTP != 0 {
			return f.fileHTTP, nil, nil
		}
		return 200, nil, nil
	}
	return 404, nil, nil
}

func (f *fakeServer) PutMultipart(_ context.Context, path string, fields []client.Field) ([]byte, error) {
	f.calls = append(f.calls, record("PUT", path, fields))
	if f.metadataErr != nil {
		return nil, f.metadataErr
	}
	if f.metadataBody == "" {
		return []byte("3"), nil
	}
	return []byte(f.metadataBody), nil
}

func (f *fakeServer) count(path string) int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c.Path, path) {
			n++
		}
	}
	return n
}

func (f *fakeServer) callsTo(path string) []call {
	var out []call
	for _, c := range f.calls {
		if strings.HasPrefix(c.Path, path) {
			out = append(out, c)
		}
	}
	return out
}

// scriptedUI answers Confirm from a queue and records every prompt.
type scriptedUI struct {
	answers  []bool
	confirms []string
	notes    []string
}

func (u *scriptedUI) Confirm(_, message string) bool {
	u.confirms = append(u.confirms, message)
	if len(u.answers) == 0 {
		return false
	}
	a := u.answers[0]
	u.answers = u.answers[1:]
	return a
}

func (u *scriptedUI) Notify(_, message string, _ Severity) {
	u.notes = append(u.notes, message)
}

// panicUI fails the test if consulted.
type panicUI struct{}

func (panicUI) Confirm(string, string) bool     { panic("Confirm must not be called") }
func (panicUI) Notify(string, string, Severity) { panic("Notify must not be called") }

type testModel struct {
	name string
	def  *datasource.Definition
}

func (m testModel) ModelName() string { return m.name }

func (m testModel) Datasource() (datasource.Definition, bool) {
	if m.def == nil {
		return datasource.Definition{}, false
	}
	return *m.def, true
}

// fakeExporter regenerates the same documents on every call.
type fakeExporter struct {
	schema      string
	metadata    string
	exports     int
	schemaErr   error
	metadataErr error
}

func (e *fakeExporter) Export(context.Context, Model) ([]byte, error) {
	e.exports++
	if e.schemaErr != nil {
		return nil, e.schemaErr
	}
	return []byte(e.schema), nil
}

func (e *fakeExporter) ExportMetadata(context.Context, Model) ([]byte, error) {
	if e.metadataErr != nil {
		return nil, e.metadataErr
	}
	return []byte(e.metadata), nil
}

type fakeBrowser struct {
	tree  *repository.FileTree
	calls int
}

func (b *fakeBrowser) ListChildren(context.Context, int, string, bool) (*repository.FileTree, error) {
	b.calls++
	if b.tree == nil {
		return nil, errors.New("no tree")
	}
	return b.tree, nil
}

var errBoom = errors.New("boom")

func nopLog() zerolog.Logger {
	return zerolog.Nop()
}

package publish

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kamusis/cubepub/internal/datasource"
	"github.com/kamusis/cubepub/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salesDB() *datasource.Definition {
	return &datasource.Definition{
		Name:        "SalesDB",
		URL:         "jdbc:postgresql://db/sales",
		Username:    "etl",
		Password:    "secret",
		DriverClass: "org.postgresql.Driver",
		Access:      datasource.AccessNative,
	}
}

func newTestOrchestrator(srv *fakeServer, exp *fakeExporter, b repository.Browser) (*Orchestrator, *[]Result) {
	o := NewOrchestrator(NewPublisher(srv, nopLog()), exp, b, nopLog())
	var steps []Result
	o.OnStep = func(r Result) { steps = append(steps, r) }
	return o, &steps
}

func salesTarget(t *testing.T) Target {
	return Target{ServerName: "prod", CatalogName: "Sales", StagingDir: t.TempDir()}
}

func TestPublish_MissingDatasourceIsAddedAutomatically(t *testing.T) {
	srv := &fakeServer{}
	exp := &fakeExporter{schema: "<Schema/>", metadata: "<xmi/>"}
	o, steps := newTestOrchestrator(srv, exp, nil)

	r := o.Publish(context.Background(), testModel{name: "Sales", def: salesDB()}, salesTarget(t),
		Options{PublishDatasource: true}, nil)

	assert.Equal(t, StatusSuccess, r.Status)
	assert.Equal(t, ArtifactMetadata, r.Artifact)

	assert.Equal(t, 1, srv.count(pathConnectionGet))
	assert.Equal(t, 1, srv.count(pathConnectionAdd))
	assert.Zero(t, srv.count(pathConnectionUpdate))
	assert.Equal(t, 1, srv.count(pathSchemaUpload))
	assert.Equal(t, 1, srv.count(pathMetadataImport))

	require.Len(t, *steps, 3)
	assert.Equal(t, ArtifactDatasource, (*steps)[0].Artifact)
	assert.Equal(t, ArtifactSchema, (*steps)[1].Artifact)
	assert.Equal(t, ArtifactMetadata, (*steps)[2].Artifact)

	schema := srv.callsTo(pathSchemaUpload)[0]
	assert.Equal(t, "Datasource=SalesDB", schema.Form["parameters"])
	assert.Equal(t, "false", schema.Form["overwrite"])
}

func TestPublish_SameDatasourceIsNotSent(t *testing.T) {
	def := salesDB()
	srv := &fakeServer{remote: &connection{Name: def.Name, URL: def.URL, Username: def.Username, DriverClass: def.DriverClass}}
	o, _ := newTestOrchestrator(srv, &fakeExporter{schema: "<Schema/>"}, nil)

	r := o.Publish(context.Background(), testModel{name: "Sales", def: def}, salesTarget(t),
		Options{PublishDatasource: true, ShowFeedback: true}, panicUIExceptNotify{})

	assert.True(t, r.OK())
	assert.Zero(t, srv.count(pathConnectionAdd))
	assert.Zero(t, srv.count(pathConnectionUpdate))
}

// panicUIExceptNotify allows notifications but fails on any question.
type panicUIExceptNotify struct{}

func (panicUIExceptNotify) Confirm(string, string) bool     { panic("Confirm must not be called") }
func (panicUIExceptNotify) Notify(string, string, Severity) {}

func TestPublish_DifferentDatasourceIsUpdatedWhenConfirmed(t *testing.T) {
	def := salesDB()
	srv := &fakeServer{remote: &connection{Name: def.Name, URL: "jdbc:postgresql://old/sales", Username: def.Username, DriverClass: def.DriverClass}}
	o, _ := newTestOrchestrator(srv, &fakeExporter{schema: "<Schema/>"}, nil)
	ui := &scriptedUI{answers: []bool{true}}

	o.Publish(context.Background(), testModel{name: "Sales", def: def}, salesTarget(t),
		Options{PublishDatasource: true, ShowFeedback: true}, ui)

	assert.Len(t, ui.confirms, 1)
	assert.Equal(t, 1, srv.count(pathConnectionUpdate))
	assert.Zero(t, srv.count(pathConnectionAdd))
}

func TestPublish_ExistingDatasourceFlagForcesUpdate(t *testing.T) {
	srv := &fakeServer{}
	o, _ := newTestOrchestrator(srv, &fakeExporter{schema: "<Schema/>"}, nil)

	o.Publish(context.Background(), testModel{name: "Sales", def: salesDB()}, salesTarget(t),
		Options{PublishDatasource: true, IsExistingDatasource: true}, nil)

	assert.Equal(t, 1, srv.count(pathConnectionUpdate))
	assert.Zero(t, srv.count(pathConnectionAdd))
}

func TestPublish_DatasourceOutcomeDoesNotStopSchema(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		srv := &fakeServer{}
		o, _ := newTestOrchestrator(srv, &fakeExporter{schema: "<Schema/>"}, nil)
		ui := &scriptedUI{answers: []bool{false}}

		r := o.Publish(context.Background(), testModel{name: "Sales", def: salesDB()}, salesTarget(t),
			Options{PublishDatasource: true, ShowFeedback: true}, ui)

		assert.True(t, r.OK())
		assert.Zero(t, srv.count(pathConnectionAdd))
		assert.Equal(t, 1, srv.count(pathSchemaUpload))
		assert.Contains(t, ui.notes, msgPublishCanceled)
	})

	t.Run("non native", func(t *testing.T) {
		def := salesDB()
		def.Access = datasource.AccessJNDI
		srv := &fakeServer{}
		o, _ := newTestOrchestrator(srv, &fakeExporter{schema: "<Schema/>"}, nil)

		r := o.Publish(context.Background(), testModel{name: "Sales", def: def}, salesTarget(t),
			Options{PublishDatasource: true}, nil)

		assert.True(t, r.OK())
		assert.Zero(t, srv.count(pathConnectionGet))
		assert.Zero(t, srv.count(pathConnectionAdd))
	})

	t.Run("transport failure", func(t *testing.T) {
		srv := &fakeServer{postJSONErr: errBoom}
		o, steps := newTestOrchestrator(srv, &fakeExporter{schema: "<Schema/>"}, nil)

		r := o.Publish(context.Background(), testModel{name: "Sales", def: salesDB()}, salesTarget(t),
			Options{PublishDatasource: true}, nil)

		assert.True(t, r.OK())
		assert.Equal(t, StatusFailed, (*steps)[0].Status)
	})
}

func TestPublish_CatalogExistsRetriesOnceWithOverwrite(t *testing.T) {
	srv := &fakeServer{schemaBodies: []string{"8", "3"}}
	exp := &fakeExporter{schema: "<Schema name=\"Sales\"/>", metadata: "<xmi/>"}
	o, _ := newTestOrchestrator(srv, exp, nil)
	ui := &scriptedUI{answers: []bool{true}}

	r := o.Publish(context.Background(), testModel{name: "Sales"}, salesTarget(t), Options{ShowFeedback: true}, ui)

	assert.True(t, r.OK())
	uploads := srv.callsTo(pathSchemaUpload)
	require.Len(t, uploads, 2)
	assert.Equal(t, "false", uploads[0].Form["overwrite"])
	assert.Equal(t, "true", uploads[1].Form["overwrite"])
	assert.Len(t, uploads[1].Files["uploadAnalysis"], len(uploads[0].Files["uploadAnalysis"]))
	assert.Equal(t, 2, exp.exports)
	assert.Equal(t, 1, srv.count(pathMetadataImport))
}

func TestPublish_CatalogExistsRetryFailsAgain(t *testing.T) {
	srv := &fakeServer{schemaBodies: []string{"8", "8"}}
	o, _ := newTestOrchestrator(srv, &fakeExporter{schema: "<Schema/>"}, nil)
	ui := &scriptedUI{answers: []bool{true, true}}

	r := o.Publish(context.Background(), testModel{name: "Sales"}, salesTarget(t), Options{ShowFeedback: true}, ui)

	assert.Equal(t, StatusCatalogExists, r.Status)
	assert.Equal(t, 2, srv.count(pathSchemaUpload))
	assert.Len(t, ui.confirms, 1)
	assert.Zero(t, srv.count(pathMetadataImport))
}

func TestPublish_CatalogExistsDeclined(t *testing.T) {
	srv := &fakeServer{schemaBodies: []string{"8"}}
	o, _ := newTestOrchestrator(srv, &fakeExporter{schema: "<Schema/>"}, nil)

	r := o.Publish(context.Background(), testModel{name: "Sales"}, salesTarget(t), Options{ShowFeedback: true}, &scriptedUI{answers: []bool{false}})

	assert.Equal(t, StatusCatalogExists, r.Status)
	assert.Equal(t, 1, srv.count(pathSchemaUpload))
	assert.Zero(t, srv.count(pathMetadataImport))
}

func TestPublish_CatalogExistsAutomaticDoesNotRetry(t *testing.T) {
	srv := &fakeServer{schemaBodies: []string{"8"}}
	o, _ := newTestOrchestrator(srv, &fakeExporter{schema: "<Schema/>"}, nil)

	r := o.Publish(context.Background(), testModel{name: "Sales"}, salesTarget(t), Options{}, nil)

	assert.Equal(t, StatusCatalogExists, r.Status)
	assert.Equal(t, 1, srv.count(pathSchemaUpload))
	assert.Zero(t, srv.count(pathMetadataImport))
}

func TestPublish_MetadataOnlyAfterSchemaSuccess(t *testing.T) {
	for _, body := range []string{"2", "6", "9", "garbage"} {
		t.Run(body, func(t *testing.T) {
			srv := &fakeServer{schemaBodies: []string{body}}
			o, _ := newTestOrchestrator(srv, &fakeExporter{schema: "<Schema/>"}, nil)

			r := o.Publish(context.Background(), testModel{name: "Sales"}, salesTarget(t), Options{}, nil)

			assert.False(t, r.OK())
			assert.Equal(t, ArtifactSchema, r.Artifact)
			assert.Zero(t, srv.count(pathMetadataImport))
		})
	}
}

func TestPublish_FeedbackReportsFinalStepOnce(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		o, _ := newTestOrchestrator(&fakeServer{}, &fakeExporter{schema: "<Schema/>", metadata: "<xmi/>"}, nil)
		ui := &scriptedUI{}

		r := o.Publish(context.Background(), testModel{name: "Sales"}, salesTarget(t), Options{ShowFeedback: true}, ui)

		assert.True(t, r.OK())
		assert.Equal(t, []string{StatusSuccess.Message()}, ui.notes)
	})

	t.Run("metadata failure", func(t *testing.T) {
		srv := &fakeServer{metadataErr: errBoom}
		o, _ := newTestOrchestrator(srv, &fakeExporter{schema: "<Schema/>", metadata: "<xmi/>"}, nil)
		ui := &scriptedUI{}

		r := o.Publish(context.Background(), testModel{name: "Sales"}, salesTarget(t), Options{ShowFeedback: true}, ui)

		assert.Equal(t, StatusFailed, r.Status)
		assert.Equal(t, ArtifactMetadata, r.Artifact)
		assert.Equal(t, []string{StatusFailed.Message()}, ui.notes)
	})

	t.Run("schema failure", func(t *testing.T) {
		srv := &fakeServer{schemaBodies: []string{"6"}}
		o, _ := newTestOrchestrator(srv, &fakeExporter{schema: "<Schema/>"}, nil)
		ui := &scriptedUI{}

		o.Publish(context.Background(), testModel{name: "Sales"}, salesTarget(t), Options{ShowFeedback: true}, ui)

		assert.Equal(t, []string{StatusDatasourceProblem.Message()}, ui.notes)
	})
}

func TestPublish_ExportFailures(t *testing.T) {
	srv := &fakeServer{}
	o, _ := newTestOrchestrator(srv, &fakeExporter{schemaErr: errBoom}, nil)
	r := o.Publish(context.Background(), testModel{name: "Sales"}, salesTarget(t), Options{}, nil)
	assert.Equal(t, StatusFailed, r.Status)
	assert.Contains(t, r.Message, "schema")
	assert.Zero(t, srv.count(pathSchemaUpload))

	srv = &fakeServer{}
	o, _ = newTestOrchestrator(srv, &fakeExporter{schema: "<Schema/>", metadataErr: errBoom}, nil)
	r = o.Publish(context.Background(), testModel{name: "Sales"}, salesTarget(t), Options{}, nil)
	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, ArtifactMetadata, r.Artifact)
	assert.Zero(t, srv.count(pathMetadataImport))
}

func TestPublish_WritesStagingCopy(t *testing.T) {
	target := salesTarget(t)
	o, _ := newTestOrchestrator(&fakeServer{}, &fakeExporter{schema: "<Schema/>"}, nil)

	o.Publish(context.Background(), testModel{name: "Sales"}, target, Options{}, nil)

	data, err := os.ReadFile(filepath.Join(target.StagingDir, "Sales.mondrian.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<Schema/>", string(data))
}

func TestPublish_DomainDefaultsToCatalog(t *testing.T) {
	srv := &fakeServer{}
	o, _ := newTestOrchestrator(srv, &fakeExporter{schema: "<Schema/>", metadata: "<xmi/>"}, nil)

	o.Publish(context.Background(), testModel{name: "Sales"}, salesTarget(t), Options{}, nil)
	assert.Equal(t, "Sales", srv.callsTo(pathMetadataImport)[0].Form["domainId"])

	target := salesTarget(t)
	target.DomainID = "sales.xmi"
	o.Publish(context.Background(), testModel{name: "Sales"}, target, Options{}, nil)
	assert.Equal(t, "sales.xmi", srv.callsTo(pathMetadataImport)[1].Form["domainId"])
}

func repoTree() *repository.FileTree {
	f := func(name, p string, folder bool, children ...*repository.FileTree) *repository.FileTree {
		return &repository.FileTree{File: &repository.FileEntry{Name: name, Path: p, Folder: folder}, Children: children}
	}
	return f("", "/", true,
		f("public", "/public", true,
			f("sales.prpt", "/public/sales.prpt", false),
		),
	)
}

func TestPublishFiles_DeclinedOverwriteUploadsNothing(t *testing.T) {
	dir := t.TempDir()
	report := writeFile(t, dir, "sales.prpt", "report")
	srv := &fakeServer{}
	b := &fakeBrowser{tree: repoTree()}
	o, _ := newTestOrchestrator(srv, &fakeExporter{}, b)
	ui := &scriptedUI{answers: []bool{false}}

	r := o.PublishFiles(context.Background(), FileTarget{Path: "/public", Files: []string{report}}, nil, Target{}, Options{ShowFeedback: true}, ui)

	assert.Equal(t, StatusFileExists, r.Status)
	assert.Zero(t, srv.count(pathFileImport))
	assert.Len(t, ui.confirms, 1)
	assert.Contains(t, ui.notes, StatusFileExists.Message())
}

func TestPublishFiles_AutomaticUsesOverwriteOption(t *testing.T) {
	dir := t.TempDir()
	report := writeFile(t, dir, "sales.prpt", "report")

	srv := &fakeServer{}
	o, _ := newTestOrchestrator(srv, &fakeExporter{}, &fakeBrowser{tree: repoTree()})
	r := o.PublishFiles(context.Background(), FileTarget{Path: "/public", Files: []string{report}}, nil, Target{}, Options{}, nil)
	assert.Equal(t, StatusFileExists, r.Status)

	srv = &fakeServer{}
	o, _ = newTestOrchestrator(srv, &fakeExporter{}, &fakeBrowser{tree: repoTree()})
	r = o.PublishFiles(context.Background(), FileTarget{Path: "/public", Files: []string{report}}, nil, Target{}, Options{OverwriteInRepository: true}, nil)
	assert.True(t, r.OK())
	assert.Equal(t, "true", srv.callsTo(pathFileImport)[0].Form["overwriteFile"])
}

func TestPublishFiles_CompanionAndDatasource(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "new.prpt", "A")
	b := writeFile(t, dir, "other.prpt", "B")
	c := writeFile(t, dir, "sales.xmi", "C")
	srv := &fakeServer{}
	browser := &fakeBrowser{tree: repoTree()}
	o, steps := newTestOrchestrator(srv, &fakeExporter{}, browser)

	ft := FileTarget{Path: "/public", Files: []string{a, b}, CompanionPath: "/public/models", CompanionFiles: []string{c}}
	r := o.PublishFiles(context.Background(), ft, salesDB(), Target{}, Options{PublishDatasource: true}, nil)

	assert.True(t, r.OK())
	uploads := srv.callsTo(pathFileImport)
	require.Len(t, uploads, 3)
	assert.Equal(t, "/public/models", uploads[2].Form["importDir"])
	assert.Equal(t, 1, srv.count(pathConnectionAdd))
	assert.Equal(t, 2, browser.calls, "one tree fetch per upload batch")
	assert.Len(t, *steps, 3)
}

func TestPublishFiles_FailedMainUploadSkipsCompanion(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "new.prpt", "A")
	c := writeFile(t, dir, "sales.xmi", "C")
	srv := &fakeServer{fileHTTP: 500}
	o, _ := newTestOrchestrator(srv, &fakeExporter{}, nil)

	ft := FileTarget{Path: "/public", Files: []string{a}, CompanionFiles: []string{c}}
	r := o.PublishFiles(context.Background(), ft, salesDB(), Target{}, Options{PublishDatasource: true}, nil)

	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, 1, srv.count(pathFileImport))
	assert.Zero(t, srv.count(pathConnectionAdd))
}

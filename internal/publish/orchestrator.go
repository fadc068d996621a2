package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kamusis/cubepub/internal/datasource"
	"github.com/kamusis/cubepub/internal/repository"
	"github.com/rs/zerolog"
)

// Model is a local analysis model ready for export.
type Model interface {
	ModelName() string
	Datasource() (datasource.Definition, bool)
}

// ModelExporter generates the documents published for a model. Each call
// produces a fresh payload.
type ModelExporter interface {
	Export(ctx context.Context, m Model) ([]byte, error)
	ExportMetadata(ctx context.Context, m Model) ([]byte, error)
}

// Options controls one publish run.
type Options struct {
	PublishDatasource     bool
	IsExistingDatasource  bool
	ShowFeedback          bool
	OverwriteInRepository bool
}

// Target names where a model ends up on the server.
type Target struct {
	ServerName     string
	CatalogName    string
	DatasourceInfo string
	DomainID       string
	SchemaFileName string
	StagingDir     string
}

// FileTarget describes a plain file import with an optional companion upload.
type FileTarget struct {
	Path           string
	Files          []string
	CompanionPath  string
	CompanionFiles []string
}

// Orchestrator runs the publish sequence. Steps run strictly one after the
// other; nothing already committed on the server is rolled back.
type Orchestrator struct {
	publisher *Publisher
	exporter  ModelExporter
	browser   repository.Browser
	log       zerolog.Logger

	// OnStep, when set, receives every step result in order.
	OnStep func(Result)
}

func NewOrchestrator(p *Publisher, exporter ModelExporter, browser repository.Browser, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{publisher: p, exporter: exporter, browser: browser, log: log}
}

func (o *Orchestrator) record(r Result) Result {
	if o.OnStep != nil {
		o.OnStep(r)
	}
	return r
}

// Publish runs the full model sequence: datasource (optional and
// independent), schema with the overwrite retry, then metadata only when the
// schema step succeeded.
func (o *Orchestrator) Publish(ctx context.Context, m Model, target Target, opts Options, ui UserConfirmation) Result {
	if ui == nil {
		opts.ShowFeedback = false
	}
	title := feedbackTitle(target.ServerName)
	log := o.log.With().Str("catalog", target.CatalogName).Str("server", target.ServerName).Logger()

	if opts.PublishDatasource {
		if def, ok := m.Datasource(); ok {
			o.datasourceStep(ctx, def, opts, ui, title)
		} else {
			verr := &ValidationError{Field: "datasource", Message: "model has no datasource"}
			log.Warn().Err(verr).Msg("skipping datasource step")
			if opts.ShowFeedback {
				ui.Notify(title, verr.Error(), SeverityError)
			}
		}
	}

	schema := o.schemaStep(ctx, m, target, opts, ui, title)
	if !schema.OK() {
		log.Info().Stringer("status", schema.Status).Msg("schema step did not succeed, metadata not published")
		return schema
	}

	metadata, err := o.exporter.ExportMetadata(ctx, m)
	if err != nil {
		serr := &SerializationError{Document: "metadata", Err: err}
		log.Warn().Err(serr).Msg("metadata export failed")
		r := o.record(Result{Status: StatusFailed, Artifact: ArtifactMetadata, Message: serr.Error()})
		o.feedback(opts, ui, title, r)
		return r
	}

	domainID := target.DomainID
	if domainID == "" {
		domainID = target.CatalogName
	}
	result := o.record(o.publisher.PublishMetadata(ctx, metadata, domainID))
	o.feedback(opts, ui, title, result)
	log.Info().Stringer("status", result.Status).Msg("publish finished")
	return result
}

func (o *Orchestrator) schemaStep(ctx context.Context, m Model, target Target, opts Options, ui UserConfirmation, title string) Result {
	schema, err := o.exporter.Export(ctx, m)
	if err != nil {
		serr := &SerializationError{Document: "schema", Err: err}
		o.log.Warn().Err(serr).Msg("schema export failed")
		r := o.record(Result{Status: StatusFailed, Artifact: ArtifactSchema, Message: serr.Error()})
		o.feedback(opts, ui, title, r)
		return r
	}

	if err := writeStagingCopy(target, schema); err != nil {
		o.log.Warn().Err(err).Msg("could not write staging copy")
		r := o.record(Result{Status: StatusFailed, Artifact: ArtifactSchema, Message: err.Error()})
		o.feedback(opts, ui, title, r)
		return r
	}

	info := datasourceInfo(m, target)
	result := o.record(o.publisher.PublishSchema(ctx, schema, target.CatalogName, info, opts.OverwriteInRepository))

	if result.Status != StatusCatalogExists || !opts.ShowFeedback {
		o.schemaFailure(opts, ui, title, result)
		return result
	}

	msg := fmt.Sprintf("%s Overwrite catalog %q?", StatusCatalogExists.Message(), target.CatalogName)
	if !ui.Confirm("Overwrite", msg) {
		return result
	}

	// The first payload has been consumed; regenerate it for the retry.
	schema, err = o.exporter.Export(ctx, m)
	if err != nil {
		serr := &SerializationError{Document: "schema", Err: err}
		r := o.record(Result{Status: StatusFailed, Artifact: ArtifactSchema, Message: serr.Error()})
		o.feedback(opts, ui, title, r)
		return r
	}
	result = o.record(o.publisher.PublishSchema(ctx, schema, target.CatalogName, info, true))
	o.schemaFailure(opts, ui, title, result)
	return result
}

// schemaFailure reports a failed schema step. A successful one is reported
// by the metadata step that follows it.
func (o *Orchestrator) schemaFailure(opts Options, ui UserConfirmation, title string, r Result) {
	if !r.OK() {
		o.feedback(opts, ui, title, r)
	}
}

// datasourceStep compares, decides and publishes the datasource. Its
// outcome never stops the rest of the sequence.
func (o *Orchestrator) datasourceStep(ctx context.Context, def datasource.Definition, opts Options, ui UserConfirmation, title string) {
	automatic := !opts.ShowFeedback
	cmp := datasource.Compare(def, func(name string) (datasource.Definition, bool) {
		return o.publisher.LookupDatasource(ctx, name)
	})
	decision := Resolve(cmp, automatic, ui)

	o.log.Debug().
		Str("connection", def.Name).
		Stringer("comparison", cmp).
		Stringer("decision", decision).
		Msg("datasource reconciled")

	if decision != Proceed && decision != ProceedWithOverwrite {
		return
	}

	isUpdate := decision == ProceedWithOverwrite || opts.IsExistingDatasource
	result := o.record(o.publisher.PublishDatasource(ctx, def, isUpdate))

	if opts.ShowFeedback {
		if result.OK() {
			msg := "Datasource added to the server."
			if isUpdate {
				msg = "Datasource updated on the server."
			}
			ui.Notify(title, msg, SeverityInfo)
		} else {
			ui.Notify(title, result.Status.Message(), result.Status.Severity())
		}
	}
}

// PublishFiles imports files into the repository, then the companion files
// when the first upload succeeded, then optionally the datasource.
func (o *Orchestrator) PublishFiles(ctx context.Context, ft FileTarget, def *datasource.Definition, target Target, opts Options, ui UserConfirmation) Result {
	if ui == nil {
		opts.ShowFeedback = false
	}
	title := feedbackTitle(target.ServerName)
	hasCompanion := len(ft.CompanionFiles) > 0

	result := o.record(o.publisher.PublishFile(ctx, ft.Path, ft.Files, o.existenceCheck(ctx), o.overwriteDelegate(opts, ui)))
	if !hasCompanion || !result.OK() {
		o.feedback(opts, ui, title, result)
	}
	if !result.OK() {
		return result
	}

	if hasCompanion {
		companionPath := ft.CompanionPath
		if companionPath == "" {
			companionPath = ft.Path
		}
		result = o.record(o.publisher.PublishFile(ctx, companionPath, ft.CompanionFiles, o.existenceCheck(ctx), o.overwriteDelegate(opts, ui)))
		o.feedback(opts, ui, title, result)
	}

	if opts.PublishDatasource && def != nil {
		o.datasourceStep(ctx, *def, opts, ui, title)
	}
	return result
}

// existenceCheck fetches the repository tree once and answers every check
// of one upload batch from it.
func (o *Orchestrator) existenceCheck(ctx context.Context) ExistsFunc {
	if o.browser == nil {
		return nil
	}
	var root *repository.Node
	fetched := false
	return func(dir, name string) (bool, error) {
		if !fetched {
			tree, err := o.browser.ListChildren(ctx, repository.Unbounded, "*", false)
			if err != nil {
				return false, err
			}
			root = repository.Build(tree, repository.Unbounded)
			fetched = true
		}
		return root.Contains(dir, name), nil
	}
}

func (o *Orchestrator) overwriteDelegate(opts Options, ui UserConfirmation) OverwriteFunc {
	return func(dir, name string) bool {
		if !opts.ShowFeedback {
			return opts.OverwriteInRepository
		}
		return ui.Confirm("Overwrite", fmt.Sprintf("%s already exists in %s. Overwrite it?", name, dir))
	}
}

func (o *Orchestrator) feedback(opts Options, ui UserConfirmation, title string, r Result) {
	if !opts.ShowFeedback {
		return
	}
	ui.Notify(title, r.Status.Message(), r.Status.Severity())
}

func feedbackTitle(server string) string {
	if server == "" {
		return "Publish"
	}
	return "Publish to " + server
}

func datasourceInfo(m Model, target Target) string {
	if target.DatasourceInfo != "" {
		return target.DatasourceInfo
	}
	if def, ok := m.Datasource(); ok {
		return datasource.NormalizeName(def.Name)
	}
	return ""
}

func writeStagingCopy(target Target, schema []byte) error {
	dir := target.StagingDir
	if dir == "" {
		dir = "models"
	}
	name := target.SchemaFileName
	if name == "" {
		name = target.CatalogName + ".mondrian.xml"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create staging dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, filepath.Base(name)), schema, 0644); err != nil {
		return fmt.Errorf("failed to write staging copy: %w", err)
	}
	return nil
}

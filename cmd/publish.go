package cmd

import (
	"fmt"
	"time"

	"github.com/kamusis/cubepub/internal/config"
	"github.com/kamusis/cubepub/internal/datasource"
	"github.com/kamusis/cubepub/internal/logging"
	"github.com/kamusis/cubepub/internal/model"
	"github.com/kamusis/cubepub/internal/publish"
	"github.com/kamusis/cubepub/internal/repository"
	"github.com/kamusis/cubepub/internal/ui"
	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a model or repository files to the server",
}

var publishModelCmd = &cobra.Command{
	Use:   "model <manifest.yaml>",
	Short: "Publish a model's datasource, schema and metadata",
	Long: `Publish the model described by a manifest.

Steps run in order: the datasource (with --publish-datasource), the schema,
and the metadata. The metadata is only published when the schema step
succeeds. When the catalog already exists and feedback is on, you are asked
whether to overwrite it and the schema is sent once more.`,
	Args: cobra.ExactArgs(1),
	RunE: runPublishModel,
}

var publishFileCmd = &cobra.Command{
	Use:   "file <repo-path> <file>...",
	Short: "Import files into a repository folder",
	Long: `Import local files into a repository folder on the server.

Companion files (--companion) are uploaded after the main files succeed.
Existing files are only replaced after confirmation, or with --overwrite
when feedback is off.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runPublishFile,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.AddCommand(publishModelCmd)
	publishCmd.AddCommand(publishFileCmd)

	for _, c := range []*cobra.Command{publishModelCmd, publishFileCmd} {
		c.Flags().Bool("publish-datasource", false, "Publish the model's datasource connection")
		c.Flags().Bool("feedback", false, "Ask before overwriting and report each step (default: on when interactive)")
		c.Flags().Bool("overwrite", false, "Overwrite existing catalogs or files without asking")
	}

	publishModelCmd.Flags().Bool("existing-datasource", false, "Update the datasource instead of adding it")
	publishModelCmd.Flags().String("staging-dir", "", "Directory for the staged schema copy (default from config)")

	publishFileCmd.Flags().String("companion-path", "", "Repository folder for companion files (default: <repo-path>)")
	publishFileCmd.Flags().StringSlice("companion", nil, "Companion files uploaded after the main files")
	publishFileCmd.Flags().String("manifest", "", "Model manifest naming the datasource for --publish-datasource")
}

func publishOptions(cmd *cobra.Command) publish.Options {
	publishDS, _ := cmd.Flags().GetBool("publish-datasource")
	overwrite, _ := cmd.Flags().GetBool("overwrite")
	existing := false
	if cmd.Flags().Lookup("existing-datasource") != nil {
		existing, _ = cmd.Flags().GetBool("existing-datasource")
	}
	return publish.Options{
		PublishDatasource:     publishDS,
		IsExistingDatasource:  existing,
		ShowFeedback:          feedbackEnabled(cmd),
		OverwriteInRepository: overwrite,
	}
}

func runPublishModel(cmd *cobra.Command, args []string) error {
	m, err := model.Load(args[0])
	if err != nil {
		return err
	}

	c, profile, err := serverClient(cmd)
	if err != nil {
		return err
	}

	stagingDir, _ := cmd.Flags().GetString("staging-dir")
	if stagingDir == "" {
		stagingDir = settings.StagingDir
	}

	opts := publishOptions(cmd)
	runID := config.NewRunID()
	log := logging.Default().With().Str("run", runID).Logger()

	orch := publish.NewOrchestrator(publish.NewPublisher(c, log), model.Exporter{}, &repository.HTTPBrowser{Client: c}, log)
	var steps []publish.Result
	orch.OnStep = func(r publish.Result) { steps = append(steps, r) }

	confirm, done := confirmation(cmd, opts.ShowFeedback)
	defer done()

	started := time.Now()
	target := m.Target(profile.Name, stagingDir)
	result := orch.Publish(cmd.Context(), m, target, opts, confirm)

	ui.RenderSteps(cmd.OutOrStdout(), steps, plainOutput(cmd))
	recordRun("model", runID, profile, target.CatalogName, result, steps, started)

	if !result.OK() {
		return fmt.Errorf("publish of %s failed: %s", m.ModelName(), result.Status.Message())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Published %s to %s.\n", m.ModelName(), profile.Name)
	return nil
}

func runPublishFile(cmd *cobra.Command, args []string) error {
	opts := publishOptions(cmd)

	var def *datasource.Definition
	if opts.PublishDatasource {
		manifestPath, _ := cmd.Flags().GetString("manifest")
		if manifestPath == "" {
			return fmt.Errorf("--publish-datasource requires --manifest")
		}
		m, err := model.Load(manifestPath)
		if err != nil {
			return err
		}
		d, ok := m.Datasource()
		if !ok {
			return fmt.Errorf("manifest %s has no datasource", manifestPath)
		}
		def = &d
	}

	c, profile, err := serverClient(cmd)
	if err != nil {
		return err
	}

	companionPath, _ := cmd.Flags().GetString("companion-path")
	companions, _ := cmd.Flags().GetStringSlice("companion")
	ft := publish.FileTarget{
		Path:           args[0],
		Files:          args[1:],
		CompanionPath:  companionPath,
		CompanionFiles: companions,
	}

	runID := config.NewRunID()
	log := logging.Default().With().Str("run", runID).Logger()
	orch := publish.NewOrchestrator(publish.NewPublisher(c, log), model.Exporter{}, &repository.HTTPBrowser{Client: c}, log)
	var steps []publish.Result
	orch.OnStep = func(r publish.Result) { steps = append(steps, r) }

	confirm, done := confirmation(cmd, opts.ShowFeedback)
	defer done()

	started := time.Now()
	result := orch.PublishFiles(cmd.Context(), ft, def, publish.Target{ServerName: profile.Name}, opts, confirm)

	ui.RenderSteps(cmd.OutOrStdout(), steps, plainOutput(cmd))
	recordRun("file", runID, profile, ft.Path, result, steps, started)

	if !result.OK() {
		return fmt.Errorf("import into %s failed: %s", ft.Path, result.Status.Message())
	}
	return nil
}

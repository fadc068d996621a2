package cmd

import (
	"os"
	"time"

	"github.com/kamusis/cubepub/internal/client"
	"github.com/kamusis/cubepub/internal/config"
	"github.com/kamusis/cubepub/internal/logging"
	"github.com/kamusis/cubepub/internal/publish"
	"github.com/kamusis/cubepub/internal/ui"
	"github.com/spf13/cobra"
)

// serverClient resolves the server profile for cmd and builds a client for
// it. CUBEPUB_PASSWORD overrides the stored password.
func serverClient(cmd *cobra.Command) (*client.Client, config.ServerProfile, error) {
	name, _ := cmd.Flags().GetString("server")
	profile, err := settings.ResolveServer(name)
	if err != nil {
		return nil, config.ServerProfile{}, err
	}

	password := os.Getenv(config.EnvPrefix + "_PASSWORD")
	if password == "" {
		password, err = config.GetPassword(profile.Name)
		if err != nil {
			logging.Default().Warn().Err(err).Str("server", profile.Name).Msg("could not read stored password")
		}
	}

	timeout := time.Duration(settings.ConnectionTimeoutMs) * time.Millisecond
	return client.NewClient(profile.URL, profile.Username, password, timeout), profile, nil
}

func plainOutput(cmd *cobra.Command) bool {
	plain, _ := cmd.Flags().GetBool("plain")
	return plain
}

// feedbackEnabled reports whether to ask and notify on the terminal. Without
// an explicit --feedback it follows whether the session is interactive.
func feedbackEnabled(cmd *cobra.Command) bool {
	if cmd.Flags().Changed("feedback") {
		on, _ := cmd.Flags().GetBool("feedback")
		return on
	}
	return ui.IsInteractive()
}

// confirmation returns the terminal prompt when feedback is on, or nil for
// automatic mode. The returned func releases the terminal.
func confirmation(cmd *cobra.Command, feedback bool) (publish.UserConfirmation, func()) {
	if !feedback {
		return nil, func() {}
	}
	term := ui.NewTerminal(cmd.OutOrStdout())
	return term, term.Close
}

// recordRun appends a finished run to the publish history. Failures are
// logged only.
func recordRun(kind, id string, profile config.ServerProfile, target string, result publish.Result, steps []publish.Result, started time.Time) {
	entry := config.HistoryEntry{
		ID:         id,
		Kind:       kind,
		Server:     profile.Name,
		ServerURL:  config.MaskURL(profile.URL),
		Catalog:    target,
		Status:     result.Status.String(),
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	for _, s := range steps {
		entry.Steps = append(entry.Steps, config.StepEntry{
			Artifact: string(s.Artifact),
			Status:   s.Status.String(),
			Message:  s.Message,
		})
	}
	if err := config.RecordRun(entry); err != nil {
		logging.Default().Warn().Err(err).Msg("could not record publish history")
	}
}

package cmd

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/kamusis/cubepub/internal/client"
	"github.com/kamusis/cubepub/internal/config"
	"github.com/kamusis/cubepub/internal/ui"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage BI server profiles",
}

var serverAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a server profile",
	Long: `Add a server profile to ~/.cubepub/config.yaml.
The password is stored encrypted in ~/.cubepub/credentials.json.`,
	Args: cobra.ExactArgs(1),
	RunE: runServerAdd,
}

var serverLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List server profiles",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ui.RenderServers(cmd.OutOrStdout(), settings.SortedServers(), settings.Server, plainOutput(cmd))
		return nil
	},
}

var serverRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Remove a server profile and its stored password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		removed, err := config.RemoveServer(v, args[0])
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("server profile not found: %s", args[0])
		}
		if err := config.DeletePassword(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed server %s.\n", args[0])
		return nil
	},
}

var serverCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the server is reachable with the stored credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, profile, err := serverClient(cmd)
		if err != nil {
			return err
		}
		if err := c.Status(cmd.Context()); err != nil {
			return fmt.Errorf("server %s is not reachable: %w", profile.Name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Server %s is reachable.\n", profile.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.AddCommand(serverAddCmd, serverLsCmd, serverRmCmd, serverCheckCmd)

	serverAddCmd.Flags().String("url", "", "Server base URL, e.g. http://localhost:8080/pentaho/ (required)")
	serverAddCmd.Flags().StringP("username", "u", "", "User name")
	serverAddCmd.Flags().Bool("password-stdin", false, "Read the password from stdin instead of prompting")
	serverAddCmd.Flags().Bool("force", false, "Overwrite an existing profile with the same name")
	serverAddCmd.Flags().Bool("check", false, "Verify the server is reachable before saving")
	serverAddCmd.MarkFlagRequired("url")
}

func runServerAdd(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	url, _ := cmd.Flags().GetString("url")
	username, _ := cmd.Flags().GetString("username")
	passwordStdin, _ := cmd.Flags().GetBool("password-stdin")
	force, _ := cmd.Flags().GetBool("force")
	check, _ := cmd.Flags().GetBool("check")

	if !strings.HasSuffix(url, "/") {
		url += "/"
	}

	password := ""
	if passwordStdin {
		reader := bufio.NewReader(cmd.InOrStdin())
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password from stdin: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	} else if username != "" && ui.IsInteractive() {
		p, err := ui.PromptPassword(cmd.OutOrStdout(), "Password")
		if err != nil {
			return err
		}
		password = p
	}

	if check {
		timeout := time.Duration(settings.ConnectionTimeoutMs) * time.Millisecond
		if err := client.NewClient(url, username, password, timeout).Status(cmd.Context()); err != nil {
			return fmt.Errorf("server is not reachable: %w", err)
		}
	}

	strategy := config.ConflictFail
	if force {
		strategy = config.ConflictOverwrite
	}
	added, err := config.AddServer(v, config.ServerProfile{Name: name, URL: url, Username: username}, strategy)
	if err != nil {
		return err
	}
	if !added {
		return fmt.Errorf("server profile %s already exists (use --force to overwrite)", name)
	}

	if password != "" {
		if err := config.SetPassword(name, password); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved server %s (%s).\n", name, config.MaskURL(url))
	return nil
}

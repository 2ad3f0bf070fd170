package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"mastowatch/pkg/auth"
	"mastowatch/pkg/config"
	"mastowatch/pkg/logger"
	"mastowatch/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage mastowatch configuration.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables and .env files
  - Configuration file
  - Default values (lowest priority)`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created as 'mastowatch.yaml' in the current directory unless a
different path is given with --config. An existing file is never replaced.`,
	Args: cobra.NoArgs,
	Run:  runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging flags, environment, files and
defaults. Tokens and passwords are masked.`,
	Args: cobra.NoArgs,
	Run:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check which commands the configuration is complete for",
	Args:  cobra.NoArgs,
	Run:   runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# mastowatch configuration
#
# Every value can also come from the environment, e.g. SOURCE_URL,
# SOURCE_TOKEN, TARGET_URL, TARGET_TOKEN, SMTP_SERVER, SMTP_PASSWORD,
# EMAIL_TO or MASTOWATCH_MIRROR_VISIBILITY. Secrets are better kept out of
# this file: use 'mastowatch auth login <source|target|smtp>'.

# Account whose followers are watched and whose posts are mirrored
source:
  instance_url: "https://mastodon.example"
  access_token: ""

# Account that receives the mirrored posts
target:
  instance_url: "https://other.example"
  access_token: ""

# Mail relay for unfollower alerts
smtp:
  server: "smtp.example.com"
  port: 465
  user: "alerts@example.com"
  password: ""
  # Sender address; the SMTP user is used when empty
  from: ""
  # Comma separated recipients
  to: "me@example.com"
  # Implicit TLS; set to false for STARTTLS on port 587
  ssl: true

followers:
  snapshot_file: "followers.json"
  page_limit: 80
  # Stop paginating after this many pages
  max_pages: 1000
  # Refuse to save a run that lost more than this share of followers (0 = off)
  max_removal_ratio: 0
  subject: "Mastodon Unfollower Alert"
  # Cron expression for 'unfollowers' to keep running, e.g. "0 */6 * * *"
  schedule: ""
  run_timeout: 15m
  # Copy the previous snapshot to <snapshot_file>.backup before saving
  backup: false

mirror:
  watermark_file: "watermark.json"
  fetch_limit: 40
  # public, unlisted, private or direct
  visibility: "private"
  # pattern or document
  sanitizer: "pattern"
  post_delay: 10s
  rate_limit_cooldown: 5m
  cycle_interval: 2m
  # Skip past posts the target rejects instead of retrying them first
  continue_on_failure: false

rate_limit:
  requests_per_minute: 60

http:
  timeout: 60s
  user_agent: "mastowatch/1.0"

logging:
  # debug, info, warn or error
  level: "info"
  # Also write JSON lines here
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) {
	path := configFile
	if path == "" {
		path = "mastowatch.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		ui.PrintError("Configuration file already exists: "+path, nil)
		os.Exit(1)
	}

	if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
		fatal("Failed to create configuration file", err)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(ui.Out, "\nNext steps:")
	fmt.Fprintln(ui.Out, "1. Set the instance URLs and SMTP settings")
	fmt.Fprintln(ui.Out, "2. Store the tokens with 'mastowatch auth login source' (and target, smtp)")
	fmt.Fprintln(ui.Out, "3. Run 'mastowatch config validate'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(nil)
	if err != nil {
		fatal("Failed to load configuration", err)
	}

	data, err := yaml.Marshal(cfg.Masked())
	if err != nil {
		fatal("Failed to format configuration", err)
	}

	ui.PrintHighlight("Current configuration")
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, string(data))
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(nil)
	if err != nil {
		fatal("Configuration is invalid", err)
	}

	if manager, err := auth.NewManager(); err == nil {
		fillSecretsFrom(manager, cfg, logger.GetLogger())
	}

	ready := reportReadiness(cfg)
	if ready == 0 {
		os.Exit(1)
	}
}

// reportReadiness prints, per command, whether cfg is complete for it and
// returns how many commands are ready
func reportReadiness(cfg *config.Config) int {
	checks := []struct {
		command string
		err     error
	}{
		{"unfollowers", cfg.ValidateFollowers()},
		{"mirror", cfg.ValidateMirror()},
	}

	ready := 0
	for _, check := range checks {
		if check.err == nil {
			ui.PrintSuccess(check.command + ": ready")
			ready++
			continue
		}
		ui.PrintWarning(check.command + ": not ready")
		fmt.Fprintln(ui.Out, indent(check.err.Error()))
	}
	return ready
}

func indent(s string) string {
	return "    " + strings.ReplaceAll(s, "\n", "\n    ")
}

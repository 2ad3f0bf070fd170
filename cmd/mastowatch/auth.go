package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"mastowatch/pkg/auth"
	"mastowatch/pkg/config"
	"mastowatch/pkg/logger"
	"mastowatch/pkg/ui"
)

var logoutAll bool

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored tokens and passwords",
	Long: `Store the access tokens and the SMTP password outside the config file.

Profiles:
  source  access token of the watched account
  target  access token of the mirror account
  smtp    password of the mail relay

Secrets are kept in:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation (MASTOWATCH_PASSPHRASE or a
    generated passphrase file)
  - Environment variables (read only)

A value set in the config file or environment always wins over a stored one.`,
}

var loginCmd = &cobra.Command{
	Use:   "login <source|target|smtp>",
	Short: "Store a secret",
	Example: `  mastowatch auth login source
  mastowatch auth login smtp`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: auth.Profiles,
	Run:       runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [profile]",
	Short: "Remove a stored secret",
	Example: `  mastowatch auth logout target
  mastowatch auth logout --all`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"list"},
	Short:   "Show which secrets are stored",
	Args:    cobra.NoArgs,
	Run:     runAuthStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)

	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored secret")
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fatal("Failed to initialize credential manager", err)
	}

	reader := bufio.NewReader(os.Stdin)

	profile := ""
	if len(args) > 0 {
		profile = args[0]
	} else {
		fmt.Fprintf(ui.Out, "Profile (%s): ", strings.Join(auth.Profiles, ", "))
		profile, _ = reader.ReadString('\n')
	}
	profile = strings.ToLower(strings.TrimSpace(profile))
	if !auth.ValidProfile(profile) {
		fatal("Unknown profile", fmt.Errorf("%q is not one of %s", profile, strings.Join(auth.Profiles, ", ")))
	}

	if existing, _ := manager.Retrieve(profile); existing != nil {
		fmt.Fprintf(ui.Out, "A %s secret is already stored. Replace it? (y/N): ", profile)
		answer, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y") {
			return
		}
	}

	fmt.Fprintf(ui.Out, "%s (hidden): ", promptFor(profile))
	secret, err := readPassword(reader)
	if err != nil {
		fatal("Failed to read secret", err)
	}
	if secret == "" {
		fatal("Nothing stored", errors.New("empty input"))
	}

	if profile != auth.ProfileSMTP {
		if err := verifyToken(profile, secret); err != nil {
			ui.PrintWarning("Token check failed: " + err.Error())
			fmt.Fprint(ui.Out, "Store it anyway? (y/N): ")
			answer, _ := reader.ReadString('\n')
			if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y") {
				os.Exit(1)
			}
		}
	}

	if err := manager.Store(&auth.Secret{Profile: profile, Value: secret}); err != nil {
		fatal("Failed to store secret", err)
	}
	ui.PrintSuccess("Stored " + profile + " secret " + auth.SanitizeSecret(&auth.Secret{Value: secret}).Value)
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fatal("Failed to initialize credential manager", err)
	}

	if logoutAll {
		_ = manager.DeleteAll()
		ui.PrintSuccess("Removed all stored secrets")
		return
	}
	if len(args) == 0 {
		fatal("Nothing to remove", errors.New("name a profile or pass --all"))
	}

	if err := manager.Delete(args[0]); err != nil {
		fatal("Failed to remove secret", err)
	}
	ui.PrintSuccess("Removed " + args[0] + " secret")
}

func runAuthStatus(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fatal("Failed to initialize credential manager", err)
	}
	printSecretStatus(manager)
}

// printSecretStatus prints one line per profile with the masked secret
func printSecretStatus(manager *auth.Manager) {
	secrets, _ := manager.List()
	stored := make(map[string]*auth.Secret, len(secrets))
	for _, s := range secrets {
		stored[s.Profile] = s
	}

	for _, profile := range auth.Profiles {
		s, ok := stored[profile]
		if !ok {
			ui.PrintInfo(fmt.Sprintf("%-6s", profile), ui.Dim("not set"))
			continue
		}
		value := auth.SanitizeSecret(s).Value
		if !s.LastModified.IsZero() {
			value += " (saved " + s.LastModified.Format(time.DateTime) + ")"
		} else {
			value += " (environment)"
		}
		ui.PrintInfo(fmt.Sprintf("%-6s", profile), value)
	}
}

func promptFor(profile string) string {
	switch profile {
	case auth.ProfileSMTP:
		return "SMTP password"
	default:
		return "Access token for the " + profile + " account"
	}
}

// verifyToken checks the token against the configured instance. It is
// skipped when no instance URL is configured for the profile.
func verifyToken(profile, token string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	account := cfg.Source
	if profile == auth.ProfileTarget {
		account = cfg.Target
	}
	if account.InstanceURL == "" {
		return nil
	}

	account.AccessToken = token
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.Timeout)
	defer cancel()

	client := newClient(account, cfg, quietLogger(cfg))
	me, err := client.VerifyCredentials(ctx)
	if err != nil {
		return err
	}
	ui.PrintInfo("Token belongs to", "@"+me.Username+" on "+account.InstanceURL)
	return nil
}

// quietLogger only reports errors, so interactive prompts stay readable
func quietLogger(cfg *config.Config) logger.Logger {
	l, err := logger.New(&config.LoggingConfig{Level: "error", File: cfg.Logging.File})
	if err != nil {
		return logger.GetLogger()
	}
	return l
}

// readPassword reads without echo from a terminal and falls back to a
// plain line read otherwise
func readPassword(reader *bufio.Reader) (string, error) {
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(ui.Out)
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

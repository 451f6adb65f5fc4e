package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"cblcrawl/pkg/auth"
	"cblcrawl/pkg/ui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Community Ban List API token",
	Long: `Manage the API token sent as a bearer token with every request.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - The CBLCRAWL_API_TOKEN environment variable (read-only)

A token configured with api.token or CBLCRAWL_API_TOKEN takes precedence.`,
}

var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store an API token securely",
	Example: `  # Store the default token
  cblcrawl auth login

  # Store a token under another name
  cblcrawl auth login ci`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Remove a stored API token",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored API tokens",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
}

func tokenName(args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0])
	}
	return auth.DefaultTokenName
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize token manager: %w", err)
	}

	name := tokenName(args)
	reader := bufio.NewReader(os.Stdin)

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("Token '%s' already exists. Replace it? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Print("API token (input is hidden): ")
	value, err := readPassword(reader)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if value == "" {
		ui.PrintError("Token is required")
		return errReported
	}

	if err := manager.Store(&auth.Token{Name: name, Value: value}); err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Token saved: %s (%s)", name, auth.MaskString(value)))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize token manager: %w", err)
	}

	name := tokenName(args)
	if err := manager.Delete(name); err != nil {
		if errors.Is(err, auth.ErrTokenNotFound) {
			ui.PrintWarning("No stored token", name)
			return nil
		}
		return err
	}
	ui.PrintSuccess("Token removed: " + name)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize token manager: %w", err)
	}

	tokens, err := manager.List()
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		ui.PrintInfo("No stored tokens", "Use 'cblcrawl auth login' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Tokens")
	for _, token := range tokens {
		t := auth.SanitizeToken(token)
		ui.Println(fmt.Sprintf("  %s: %s (modified %s)", t.Name, t.Value, t.LastModified.Format("2006-01-02 15:04:05")))
	}
	if os.Getenv(auth.TokenEnvVar) != "" {
		ui.Println(fmt.Sprintf("\n%s is set and overrides stored tokens.", auth.TokenEnvVar))
	}
	return nil
}

// readPassword reads a secret from stdin without echo when attached to a terminal
func readPassword(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// Package cli implements the terminal front end: command dispatch,
// the interactive assistant session, and account management commands.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/compliance-assistant/client/internal/api"
	"github.com/compliance-assistant/client/internal/config"
	"github.com/compliance-assistant/client/internal/model"
	"github.com/compliance-assistant/client/internal/store"
	"github.com/compliance-assistant/client/pkg/logger"
)

var (
	headingColor   = color.New(color.FgCyan, color.Bold)
	promptColor    = color.New(color.FgGreen, color.Bold)
	assistantColor = color.New(color.FgWhite)
	systemColor    = color.New(color.FgYellow)
	errColor       = color.New(color.FgRed)
	okColor        = color.New(color.FgGreen)
)

// App wires the commands to the API client and local state.
type App struct {
	cfg   *config.Config
	api   *api.Client
	store *store.Store
	log   *logger.Logger

	in  io.Reader
	out io.Writer
}

// NewApp builds the command-line application.
func NewApp(cfg *config.Config, apiClient *api.Client, st *store.Store, log *logger.Logger, in io.Reader, out io.Writer) *App {
	if log == nil {
		log = logger.NewNop()
	}
	return &App{cfg: cfg, api: apiClient, store: st, log: log, in: in, out: out}
}

// Run dispatches to a subcommand.
func (a *App) Run(args []string) error {
	if len(args) == 0 {
		a.usage()
		return nil
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return a.cmdLogin(rest)
	case "signup":
		return a.cmdSignup(rest)
	case "logout":
		return a.cmdLogout(rest)
	case "chat":
		return a.cmdChat(rest)
	case "conversations", "sessions":
		return a.cmdConversations(rest)
	case "billing":
		return a.cmdBilling(rest)
	case "settings":
		return a.cmdSettings(rest)
	case "storage":
		return a.cmdStorage(rest)
	case "help", "-h", "--help":
		a.usage()
		return nil
	default:
		a.usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *App) usage() {
	headingColor.Fprintln(a.out, "Compliance Assistant")
	fmt.Fprintln(a.out, `
Usage:
  assistant <command> [flags]

Commands:
  login                        Sign in with email and password
  signup                       Create an account
  logout                       Sign out and clear stored credentials
  chat [--resume]              Start or resume an assistant session
  conversations list|archive|delete
                               Manage past conversations
  billing plans|subscription|invoices|upgrade
  settings letterhead|styles|logo
  storage list|link|unlink     Manage document storage destinations
  help                         Show this help`)
}

// friendlyError rewrites well-known failures into actionable messages.
func (a *App) friendlyError(err error) error {
	switch {
	case errors.Is(err, model.ErrNoCredential):
		return errors.New("you are not signed in; run 'assistant login' first")
	case errors.Is(err, model.ErrSessionExpired):
		return errors.New("your session expired; run 'assistant login' again")
	case errors.Is(err, model.ErrSessionNotFound):
		return errors.New("that conversation no longer exists")
	case errors.Is(err, model.ErrUpgradeRequired):
		return errors.New("your plan does not cover this; see 'assistant billing plans'")
	default:
		return err
	}
}

// readLine prompts and reads one trimmed line from the input stream.
func (a *App) readLine(prompt string) (string, error) {
	fmt.Fprint(a.out, prompt)
	reader := bufio.NewReader(a.in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Command todoctl is a terminal client for the Todo Production API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/todoproduction/todo-client/config"
	"github.com/todoproduction/todo-client/internal/apiclient"
	"github.com/todoproduction/todo-client/internal/bootstrap"
	domainauth "github.com/todoproduction/todo-client/internal/domain/auth"
	apperrors "github.com/todoproduction/todo-client/internal/errors"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	// failure is shown when the API gives no message of its own.
	failure string
	run     commandFn
}

type commandContext struct {
	Ctx      context.Context
	Logger   *slog.Logger
	Config   config.AppConfig
	Services bootstrap.ServiceContainer
	Format   outputFormat
	In       io.Reader
	Out      io.Writer
	Err      io.Writer
}

// usageError marks bad command-line input; run exits 2 for it.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

// sessionNotice tells the user once that the session is gone. It plays the
// part of sending a browser back to the login page.
type sessionNotice struct {
	w     io.Writer
	once  sync.Once
	fired atomic.Bool
}

func (n *sessionNotice) SessionInvalidated(_ context.Context, _ domainauth.SessionInvalidated) {
	n.once.Do(func() {
		n.fired.Store(true)
		_ = writef(n.w, "session expired, please log in again\n") //nolint:errcheck // best-effort notice
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code) //nolint:forbidigo // CLI must propagate command status to the shell
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("todoctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("o", string(formatTable), "Output format: table, json or yaml")
	verbose := fs.Bool("v", false, "Log debug output to stderr")
	fs.Usage = func() { _ = printUsage(stderr) } //nolint:errcheck // usage is best-effort
	if err := fs.Parse(args); err != nil {
		return 2
	}

	outFmt, err := parseFormat(*format)
	if err != nil {
		_ = writef(stderr, "%v\n", err) //nolint:errcheck // exiting anyway
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		_ = printUsage(stderr) //nolint:errcheck // exiting anyway
		return 2
	}
	cmd, ok := commands()[rest[0]]
	if !ok {
		_ = writef(stderr, "unknown command %q\n\n", rest[0]) //nolint:errcheck // exiting anyway
		_ = printUsage(stderr)                              //nolint:errcheck // exiting anyway
		return 2
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		_ = writef(stderr, "load config: %v\n", err) //nolint:errcheck // exiting anyway
		return 1
	}
	level := bootstrap.LogLevel(cfg.IsDev || *verbose, slog.LevelWarn)
	logger := bootstrap.InitLogger(stderr, level)

	store, closeStore, err := bootstrap.OpenCredentialStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.ErrorContext(ctx, "open credential store", "error", err)
		_ = writef(stderr, "could not open credential store: %v\n", err) //nolint:errcheck // exiting anyway
		return 1
	}
	defer func() {
		if cerr := closeStore(); cerr != nil {
			logger.WarnContext(ctx, "close credential store", "error", cerr)
		}
	}()

	notice := &sessionNotice{w: stderr}
	svcs, err := bootstrap.NewServices(ctx, &bootstrap.ServiceDeps{
		Config:   &cfg,
		Store:    store,
		Listener: notice,
		Logger:   logger,
	})
	if err != nil {
		_ = writef(stderr, "could not start client: %v\n", err) //nolint:errcheck // exiting anyway
		return 1
	}
	defer func() {
		if cerr := svcs.Close(); cerr != nil {
			logger.WarnContext(ctx, "close services", "error", cerr)
		}
	}()

	cmdCtx := &commandContext{
		Ctx:      ctx,
		Logger:   logger,
		Config:   cfg,
		Services: svcs,
		Format:   outFmt,
		In:       stdin,
		Out:      stdout,
		Err:      stderr,
	}
	return exitCode(cmdCtx, cmd, cmd.run(cmdCtx, rest[1:]), notice)
}

func exitCode(cmdCtx *commandContext, cmd command, err error, notice *sessionNotice) int {
	if err == nil {
		return 0
	}
	cmdCtx.Logger.DebugContext(cmdCtx.Ctx, "command failed", "command", cmd.name, "error", err)

	var uerr usageError
	switch {
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.As(err, &uerr):
		_ = writef(cmdCtx.Err, "%s: %s\n", cmd.name, uerr.msg) //nolint:errcheck // exiting anyway
		return 2
	case notice.fired.Load():
		return 1
	}

	fallback := cmd.failure
	if apperrors.GetCode(err) == "" {
		fallback = err.Error()
	}
	_ = writef(cmdCtx.Err, "%s: %s\n", cmd.name, apiclient.UserMessage(err, fallback)) //nolint:errcheck // exiting anyway
	return 1
}

func commands() map[string]command {
	list := []command{
		{name: "login", description: "Log in with email and password", failure: "Login failed", run: runLogin},
		{name: "register", description: "Create an account and agency", failure: "Registration failed", run: runRegister},
		{name: "logout", description: "Revoke the session and clear stored credentials", failure: "Logout failed", run: runLogout},
		{name: "whoami", description: "Show the logged-in user and agency", failure: "Could not read session", run: runWhoAmI},
		{name: "refresh", description: "Exchange the refresh token for a new access token", failure: "Refresh failed", run: runRefresh},
		{name: "agencies", description: "List agencies you belong to", failure: "Could not load agencies", run: runAgencies},
		{name: "switch-agency", description: "Make another agency current", failure: "Could not switch agency", run: runSwitchAgency},
		{name: "dashboard", description: "Show stats, active projects and your profile", failure: "Could not load dashboard", run: runDashboard},
		{name: "projects", description: "List, show or create projects (list|active|get|create)", failure: "Project request failed", run: runProjects},
		{name: "team", description: "List members of the current agency", failure: "Could not load team", run: runTeam},
		{name: "invite", description: "Invite someone to the current agency", failure: "Invitation failed", run: runInvite},
		{name: "health", description: "Check API health", failure: "Health check failed", run: runHealth},
	}
	out := make(map[string]command, len(list))
	for _, c := range list {
		out[c.name] = c
	}
	return out
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: todoctl [-o table|json|yaml] [-v] <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-16s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

// parseFlags parses args with fs, turning flag errors into usage errors.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usageError{msg: err.Error()}
	}
	return nil
}

func (c *commandContext) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.Err)
	return fs
}

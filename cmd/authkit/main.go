// Command authkit exercises the session-management core against a configured
// deployment: sign in, inspect, refresh, and end a session from the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/linkstash/authkit/config"
	"github.com/linkstash/authkit/internal/bootstrap"
	domainauth "github.com/linkstash/authkit/internal/domain/auth"
	"github.com/linkstash/authkit/internal/ports"
	"github.com/linkstash/authkit/internal/service"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

func main() {
	cfg, cfgErr := bootstrap.LoadConfig()
	logger := bootstrap.InitLogger(cfg.IsDev)
	if cfgErr != nil {
		logger.ErrorContext(context.Background(), "load config", "error", cfgErr)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	if len(os.Args) < 2 {
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdCtx := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"login": {
			name:        "login",
			description: "Sign in and persist the credential",
			run:         runLogin,
		},
		"register": {
			name:        "register",
			description: "Create an account and sign in",
			run:         runRegister,
		},
		"status": {
			name:        "status",
			description: "Show the current session state",
			run:         runStatus,
		},
		"refresh": {
			name:        "refresh",
			description: "Refresh the stored credential",
			run:         runRefresh,
		},
		"logout": {
			name:        "logout",
			description: "End the session and clear the stored credential",
			run:         runLogout,
		},
	}
}

func printUsage() error {
	if err := writef(os.Stdout, "Usage: authkit <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(os.Stdout, "Available commands:\n"); err != nil {
		return err
	}
	for _, c := range commands() {
		if err := writef(os.Stdout, "  %-10s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

// buildManager wires the session manager from configuration and resolves its
// initial state from the credential store.
func buildManager(ctx *commandContext) (*service.SessionManager, func(), error) {
	metrics := bootstrap.BuildMetrics(ctx.Config.Observability, ctx.Logger)

	store, storeCleanup := bootstrap.BuildCredentialStore(bootstrap.StoreOptions{
		Storage: ctx.Config.Storage,
		Logger:  ctx.Logger,
	})
	provider := bootstrap.BuildProvider(bootstrap.ProviderOptions{
		Auth:   ctx.Config.Auth,
		HTTP:   ctx.Config.HTTP,
		Logger: ctx.Logger,
	})

	cleanup := func() {
		if err := storeCleanup(); err != nil {
			ctx.Logger.Warn("credential store cleanup failed", "error", err)
		}
		if metrics != nil {
			if err := metrics.Close(); err != nil {
				ctx.Logger.Warn("metrics close failed", "error", err)
			}
		}
	}

	manager := bootstrap.BuildSessionManager(bootstrap.SessionManagerOptions{
		Store:    store,
		Provider: provider,
		Metrics:  metrics,
		Logger:   ctx.Logger,
	})
	if manager == nil {
		cleanup()
		return nil, nil, fmt.Errorf("session manager could not be built, check AUTH_MODE and STORAGE_BACKEND configuration")
	}

	if err := manager.Bootstrap(ctx.Ctx); err != nil {
		ctx.Logger.Warn("bootstrap from stored credential failed", "error", err)
	}

	return manager, cleanup, nil
}

func runLogin(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email (password mode)")
	password := fs.String("password", "", "account password (password mode)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	manager, cleanup, err := buildManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if manager.State().Status == domainauth.StatusAuthenticated {
		return writef(os.Stdout, "already signed in, run `authkit logout` first\n")
	}

	if err := manager.Login(ctx.Ctx, ports.LoginInput{Email: *email, Password: *password}); err != nil {
		return err
	}

	state := manager.State()
	if state.Status != domainauth.StatusAuthenticated {
		return writef(os.Stdout, "sign-in was cancelled\n")
	}
	return printState(state)
}

func runRegister(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	manager, cleanup, err := buildManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	input := ports.RegisterInput{Name: *name, Email: *email, Password: *password}
	if err := manager.Register(ctx.Ctx, input); err != nil {
		return err
	}
	return printState(manager.State())
}

func runStatus(ctx *commandContext, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("status takes no arguments")
	}

	manager, cleanup, err := buildManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	return printState(manager.State())
}

func runRefresh(ctx *commandContext, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("refresh takes no arguments")
	}

	manager, cleanup, err := buildManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := manager.Refresh(ctx.Ctx); err != nil {
		return err
	}
	return printState(manager.State())
}

func runLogout(ctx *commandContext, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("logout takes no arguments")
	}

	manager, cleanup, err := buildManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := manager.Logout(ctx.Ctx); err != nil {
		return err
	}
	return writef(os.Stdout, "signed out\n")
}

func printState(state domainauth.State) error {
	if err := writef(os.Stdout, "status: %s\n", state.Status); err != nil {
		return err
	}
	if state.Session == nil {
		return nil
	}
	if state.Session.User != nil {
		if err := writef(os.Stdout, "user:   %s <%s>\n", state.Session.User.ID, state.Session.User.Email); err != nil {
			return err
		}
	}
	if !state.Session.ExpiresAt.IsZero() {
		return writef(os.Stdout, "expiry: %s\n", state.Session.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rbook/librarian/internal/infra/config"
	"github.com/rbook/librarian/internal/infra/logging"
	"github.com/rbook/librarian/internal/repo/library"
	"github.com/rbook/librarian/internal/svc/librarysvc"
)

const (
	appName = "rbook"
	svcName = "librarysvc"
)

type Config struct {
	config.EnvConfig

	Log     logging.LoggerConfig     `envPrefix:"LOG_"`
	Library librarysvc.LibraryConfig `envPrefix:"LIBRARY_"`
	Repo    RepoConfig               `envPrefix:"REPO_"`
}

// RepoConfig selects and configures the storage backend.
type RepoConfig struct {
	// Backend is the repository implementation to use ("memory" or "sqlite")
	Backend string `env:"BACKEND" default:"memory"`

	SQLite library.SQLiteRepositoryConfig `envPrefix:"SQLITE_"`
}

func main() {
	var (
		cfg Config
		ctx = context.Background()

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := run(ctx, cfg); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	defer func() {
		log := logging.GetLogger("cmd.librarysvc")

		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)

			return
		}

		log.InfoContext(ctx, "shutdown")
	}()

	repoFactory, err := repositoryFactory(cfg.Repo)
	if err != nil {
		return err
	}

	librarySvc, err := librarysvc.NewLibraryService(repoFactory, cfg.Library)
	if err != nil {
		return fmt.Errorf("new library service: %w", err)
	}

	defer func() {
		if closeErr := librarySvc.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close library service: %w", closeErr)
		}
	}()

	console := librarysvc.NewConsoleTransport(librarySvc, os.Stdin, os.Stdout)

	if err := console.Run(ctx); err != nil {
		return fmt.Errorf("console: %w", err)
	}

	return nil
}

func repositoryFactory(cfg RepoConfig) (library.RepositoryFactory, error) {
	switch cfg.Backend {
	case "memory":
		return library.MemoryRepositoryFactory(), nil
	case "sqlite":
		return library.SQLiteRepositoryFactory(cfg.SQLite), nil
	default:
		return nil, fmt.Errorf("unknown repository backend: %q", cfg.Backend)
	}
}

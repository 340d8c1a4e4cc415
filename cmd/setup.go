package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/studio/internal/shared"
	"github.com/urfave/cli/v3"
)

// loadOrCreateConfig loads path, creating it from the template when missing.
func (r *Runner) loadOrCreateConfig(path string) *shared.Config {
	if _, err := os.Stat(path); err != nil {
		r.logger.Info("config file not found, creating from template", "path", path)
		if err := shared.CreateConfigFile(path); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			return shared.DefaultConfig()
		}
		r.logger.Info("config file created", "path", path)
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "error", err)
		return shared.DefaultConfig()
	}
	return config
}

// SetupConfig writes the config template.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)
	return r.writePlain("✓ Config written to %s\n", path)
}

// SetupDatabase initializes the journal database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.loadOrCreateConfig(cmd.String("config"))

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return nil
}

// SetupAuth saves the session cookies from a browser request copied as cURL.
//
// The request's origin becomes server.base_url unless one is already configured.
func (r *Runner) SetupAuth(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")
	configPath := cmd.String("config")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}

	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	r.logger.Info("parsing cURL command for session cookies")

	var session *shared.CurlSession
	var err error

	if curlFile != "" {
		session, err = shared.ParseCurlFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	} else {
		session, err = shared.ParseCurlCommand(curlCmd)
		if err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
	}

	config := r.loadOrCreateConfig(configPath)

	if session.Cookie == "" {
		return fmt.Errorf("%w: the cURL command carries no cookies", shared.ErrNotAuthenticated)
	}
	if session.CookieValue(config.Auth.CSRFCookie) == "" {
		r.logger.Warn("no CSRF cookie in session, mutating requests will be rejected", "cookie", config.Auth.CSRFCookie)
	}

	config.Auth.Cookie = session.Cookie
	if origin := session.Origin(); origin != "" && (config.Server.BaseURL == "" || config.Server.BaseURL == shared.DefaultConfig().Server.BaseURL) {
		config.Server.BaseURL = origin
	}

	if err := shared.SaveConfig(configPath, config); err != nil {
		return err
	}

	r.logger.Info("session saved", "path", configPath, "base_url", config.Server.BaseURL)

	r.writePlain("✓ Session saved to %s\n", configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Run 'studio library list' to check the session\n")
	r.writePlain("2. Run 'studio generate -m image \"a red fox\"' to generate\n")

	return nil
}

// SetupLogin signs in through the login form and saves the session cookies.
func (r *Runner) SetupLogin(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	config := r.loadOrCreateConfig(configPath)
	config.Auth.Cookie = ""

	svc, err := newService(config)
	if err != nil {
		return err
	}

	username := cmd.String("username")
	r.logger.Info("signing in", "username", username, "base_url", config.Server.BaseURL)

	if err := svc.Login(ctx, username, cmd.String("password")); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	config.Auth.Cookie = svc.SessionCookie()
	if err := shared.SaveConfig(configPath, config); err != nil {
		return err
	}

	r.logger.Info("session saved", "path", configPath)
	return r.writePlain("✓ Signed in as %s, session saved to %s\n", username, configPath)
}

// SetupLogout ends the saved session and clears it from the config.
func (r *Runner) SetupLogout(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrMissingConfig, err)
	}
	if config.Auth.Cookie == "" {
		return r.writePlain("No saved session\n")
	}

	svc, err := newService(config)
	if err != nil {
		return err
	}
	if err := svc.Logout(ctx); err != nil {
		r.logger.Warn("server logout failed, clearing local session anyway", "error", err)
	}

	config.Auth.Cookie = ""
	if err := shared.SaveConfig(configPath, config); err != nil {
		return err
	}
	return r.writePlain("✓ Signed out\n")
}

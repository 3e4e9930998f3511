package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"penpal/internal/delay"
)

// Parameter keys relative to /{env}/penpal/.
const (
	keyDatabaseURL = "database/url"
	keyAdminAPIKey = "security/admin_api_key"
	keyDelayMode   = "delivery/default_mode"
)

// validateTimeout bounds the database reachability probe.
const validateTimeout = 15 * time.Second

// DatabaseConnector abstracts the database reachability probe.
type DatabaseConnector interface {
	// Connect opens and closes a connection to dsn.
	Connect(ctx context.Context, dsn string) error
}

// PgxConnector probes the database with a real pgx connection.
type PgxConnector struct{}

// Connect establishes a connection and immediately closes it.
func (PgxConnector) Connect(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	return conn.Close(ctx)
}

// Inputs are the operator-supplied values for one bootstrap run.
type Inputs struct {
	DatabaseURL    string
	DelayMode      string
	RotateAdminKey bool
	SkipDBCheck    bool
}

// Result lists the parameter paths touched by a run.
type Result struct {
	Written []string
	Skipped []string
}

// Bootstrapper populates the SSM parameters the deployed functions resolve
// at cold start. Re-running it is safe: existing secrets are kept unless
// replaced explicitly.
type Bootstrapper struct {
	SSM      *SSMManager
	DB       DatabaseConnector
	Generate func() (string, error)
	Logger   *slog.Logger
}

// Run writes every parameter in the inventory.
func (b *Bootstrapper) Run(ctx context.Context, in Inputs) (*Result, error) {
	res := &Result{}

	if err := b.databaseURL(ctx, in, res); err != nil {
		return res, err
	}
	if err := b.adminKey(ctx, in.RotateAdminKey, res); err != nil {
		return res, err
	}

	mode, err := delay.ParseMode(in.DelayMode)
	if err != nil {
		return res, err
	}
	if mode == "" {
		mode = delay.ModeFast
	}
	path := b.SSM.SSMPath(keyDelayMode)
	if err := b.SSM.PutString(ctx, path, string(mode)); err != nil {
		return res, err
	}
	res.Written = append(res.Written, path)

	return res, nil
}

func (b *Bootstrapper) databaseURL(ctx context.Context, in Inputs, res *Result) error {
	path := b.SSM.SSMPath(keyDatabaseURL)

	if in.DatabaseURL == "" {
		exists, err := b.SSM.ParameterExists(ctx, path)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%s is not set: pass --database-url", path)
		}
		res.Skipped = append(res.Skipped, path)
		return nil
	}

	if err := ValidateDatabaseURL(ctx, b.DB, in.DatabaseURL, in.SkipDBCheck); err != nil {
		return err
	}
	if err := b.SSM.PutSecret(ctx, path, in.DatabaseURL, true); err != nil {
		return err
	}
	res.Written = append(res.Written, path)
	return nil
}

func (b *Bootstrapper) adminKey(ctx context.Context, rotate bool, res *Result) error {
	path := b.SSM.SSMPath(keyAdminAPIKey)

	if !rotate {
		exists, err := b.SSM.ParameterExists(ctx, path)
		if err != nil {
			return err
		}
		if exists {
			b.Logger.Info("admin API key present, keeping it", "path", path)
			res.Skipped = append(res.Skipped, path)
			return nil
		}
	}

	generate := b.Generate
	if generate == nil {
		generate = GenerateSecureToken
	}
	key, err := generate()
	if err != nil {
		return err
	}
	if err := b.SSM.PutSecret(ctx, path, key, true); err != nil {
		return err
	}
	res.Written = append(res.Written, path)
	return nil
}

// ValidateDatabaseURL checks that dsn parses as a PostgreSQL connection
// string and, unless skipConnect is set, that the database accepts a
// connection with it.
func ValidateDatabaseURL(ctx context.Context, conn DatabaseConnector, dsn string, skipConnect bool) error {
	if _, err := pgx.ParseConfig(dsn); err != nil {
		return fmt.Errorf("invalid database URL: %w", err)
	}
	if skipConnect {
		return nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()
	if err := conn.Connect(probeCtx, dsn); err != nil {
		return fmt.Errorf("database URL rejected: connection failed: %w", err)
	}
	return nil
}

// Package main implements the bootstrap CLI tool for penpal deployments.
//
// It populates AWS SSM Parameter Store with the values the API and the
// maintenance Lambda resolve at cold start, before the first deployment.
//
// Usage:
//
//	go run ./cmd/ops/bootstrap --env=dev --database-url=postgres://...
//	go run ./cmd/ops/bootstrap --env=staging --rotate-admin-key
//	go run ./cmd/ops/bootstrap --env=prod --profile=penpal-prod --delay-mode=realistic
//
// The tool performs the following:
//  1. Loads the AWS SDK v2 session for the given profile and region.
//  2. Calls STS GetCallerIdentity to verify the active AWS identity.
//  3. If --env=prod, requires the operator to type "yes".
//  4. Validates the database URL and writes every parameter under
//     /{env}/penpal/.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Supported environments for the bootstrap tool.
var validEnvironments = map[string]bool{
	"dev":     true,
	"staging": true,
	"prod":    true,
}

// IdentityClient is the subset of STS used to confirm credentials.
type IdentityClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Identity is the AWS principal the tool is acting as.
type Identity struct {
	AccountID string
	ARN       string
}

type flags struct {
	Env     string
	Profile string
	Region  string
	Inputs
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	f, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var opts []func(*awsconfig.LoadOptions) error
	if f.Region != "" {
		opts = append(opts, awsconfig.WithRegion(f.Region))
	}
	if f.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(f.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		logger.Error("loading AWS config failed", "error", err)
		os.Exit(1)
	}

	identity, err := verifyIdentity(ctx, sts.NewFromConfig(awsCfg), logger)
	if err != nil {
		logger.Error("initialization failed", "error", err, "profile", f.Profile, "region", f.Region)
		os.Exit(1)
	}

	printBanner(os.Stderr, f, identity)
	if f.Env == "prod" && !confirmProduction(os.Stdin, os.Stderr) {
		fmt.Fprintln(os.Stderr, "Aborted. No changes were made.")
		return
	}

	b := &Bootstrapper{
		SSM:    NewSSMManager(ssm.NewFromConfig(awsCfg), f.Env, logger),
		DB:     PgxConnector{},
		Logger: logger,
	}
	res, err := b.Run(ctx, f.Inputs)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}

	logger.Info("bootstrap completed successfully",
		"env", f.Env,
		"account", identity.AccountID,
		"written", len(res.Written),
		"kept", len(res.Skipped),
	)
}

func parseFlags(args []string, stderr io.Writer) (flags, error) {
	fs := flag.NewFlagSet("bootstrap", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var f flags
	fs.StringVar(&f.Env, "env", "", "Target environment (dev/staging/prod) [required]")
	fs.StringVar(&f.Profile, "profile", "", "AWS CLI profile (default: uses default credential chain)")
	fs.StringVar(&f.Region, "region", "us-east-1", "AWS region")
	fs.StringVar(&f.DatabaseURL, "database-url", os.Getenv("BOOTSTRAP_DATABASE_URL"), "PostgreSQL connection string to store")
	fs.StringVar(&f.DelayMode, "delay-mode", "fast", "Default delay mode (fast, realistic, continent, continent_far)")
	fs.BoolVar(&f.RotateAdminKey, "rotate-admin-key", false, "Replace an existing admin API key")
	fs.BoolVar(&f.SkipDBCheck, "skip-db-check", false, "Store the database URL without connecting to it")

	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.Env == "" {
		return f, fmt.Errorf("--env is required")
	}
	if !validEnvironments[f.Env] {
		return f, fmt.Errorf("invalid environment %q (must be dev, staging, or prod)", f.Env)
	}
	return f, nil
}

// verifyIdentity calls STS GetCallerIdentity so bad credentials fail before
// any parameter is touched.
func verifyIdentity(ctx context.Context, client IdentityClient, logger *slog.Logger) (*Identity, error) {
	identityCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := client.GetCallerIdentity(identityCtx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("verifying AWS identity (STS GetCallerIdentity): %w", err)
	}

	id := &Identity{AccountID: aws.ToString(out.Account), ARN: aws.ToString(out.Arn)}
	logger.Info("AWS identity verified", "account_id", id.AccountID, "arn", id.ARN)
	return id, nil
}

// confirmProduction returns true only if the operator types "yes".
func confirmProduction(in io.Reader, out io.Writer) bool {
	fmt.Fprintln(out, "  WARNING: You are targeting the PRODUCTION environment")
	fmt.Fprint(out, "Type 'yes' to continue: ")

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(scanner.Text()), "yes")
}

func printBanner(w io.Writer, f flags, id *Identity) {
	fmt.Fprintln(w, "------------------------------------------------------------")
	fmt.Fprintln(w, "  penpal bootstrap")
	fmt.Fprintln(w, "------------------------------------------------------------")
	fmt.Fprintf(w, "  Environment:  %s\n", f.Env)
	fmt.Fprintf(w, "  AWS Account:  %s\n", id.AccountID)
	fmt.Fprintf(w, "  AWS Region:   %s\n", f.Region)
	fmt.Fprintf(w, "  Identity:     %s\n", id.ARN)
	fmt.Fprintf(w, "  SSM Prefix:   /%s/penpal/\n", f.Env)
	fmt.Fprintln(w, "------------------------------------------------------------")
}

// Package cli wires the command-line surface to the extraction pipeline:
// resolve configuration, derive the TLS policy, connect, execute the single
// query, stream the rows into the requested writer, and map the outcome to
// an exit code.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/EvilBit-Labs/gold-digger/internal/config"
	"github.com/EvilBit-Labs/gold-digger/internal/db"
	"github.com/EvilBit-Labs/gold-digger/internal/exitcode"
	"github.com/EvilBit-Labs/gold-digger/internal/logging"
	"github.com/EvilBit-Labs/gold-digger/internal/redact"
	"github.com/EvilBit-Labs/gold-digger/internal/tlspolicy"
	"github.com/EvilBit-Labs/gold-digger/internal/writer"
)

// rowSource is what the pipeline needs from an executed query: the writer
// contract plus resource release.
type rowSource interface {
	writer.Source
	Close() error
}

// database is the connection seam. Tests substitute an in-memory
// implementation; production uses the mysql-backed db package.
type database interface {
	Execute(ctx context.Context, query string) (rowSource, error)
	Close() error
}

// openDatabase is replaced in tests.
var openDatabase = func(ctx context.Context, rawURL string, policy *tlspolicy.Policy) (database, error) {
	conn, err := db.Open(ctx, rawURL, policy)
	if err != nil {
		return nil, err
	}
	return mysqlDatabase{conn}, nil
}

type mysqlDatabase struct {
	conn *db.DB
}

func (m mysqlDatabase) Execute(ctx context.Context, query string) (rowSource, error) {
	rows, err := m.conn.Execute(ctx, query)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (m mysqlDatabase) Close() error {
	return m.conn.Close()
}

// Execute runs the program and returns its exit code. Panics never escape:
// they classify as unknown failures.
func Execute(version string, args []string) (code int) {
	var flags config.Flags

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(os.Stderr, redact.Redact(fmt.Sprintf("error: internal failure: %v", r)))
			code = exitcode.UnknownError
		}
	}()

	cmd := newRootCommand(&flags, version)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		printError(os.Stderr, err, flags.Verbose)
		return exitcode.FromError(err)
	}
	return exitcode.Success
}

const longHelp = `gold-digger runs a single SQL query against a MySQL or MariaDB server over a
TLS-capable connection and writes the result to a file as CSV, JSON or TSV.
It is built for automation: configuration comes from flags or environment
variables, secrets are redacted from all diagnostics, and every failure maps
to a fixed exit code.`

func newRootCommand(flags *config.Flags, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gold-digger",
		Short:         "Execute a SQL query against MySQL/MariaDB and write CSV, JSON or TSV",
		Long:          longHelp,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), *flags, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.DBURL, "db-url", "", "database URL (overrides DATABASE_URL)")
	f.StringVar(&flags.Query, "query", "", "inline SQL query (exclusive with --query-file)")
	f.StringVar(&flags.QueryFile, "query-file", "", "read the SQL query from a file (exclusive with --query)")
	f.StringVar(&flags.Output, "output", "", "output file path (overrides OUTPUT_FILE)")
	f.StringVar(&flags.Format, "format", "", "output format: csv, json or tsv (default: inferred from the output extension)")
	f.BoolVar(&flags.Verbose, "verbose", false, "more diagnostics (exclusive with --quiet)")
	f.BoolVar(&flags.Quiet, "quiet", false, "suppress non-error diagnostics")
	f.BoolVar(&flags.AllowEmpty, "allow-empty", false, "treat zero rows as success")
	f.BoolVar(&flags.Pretty, "pretty", false, "indent JSON output")
	f.BoolVar(&flags.DumpConfig, "dump-config", false, "print the resolved configuration (secrets redacted) and exit")
	f.StringVar(&flags.TLSCAFile, "tls-ca-file", "", "custom CA bundle (PEM); exclusive with the other TLS flags")
	f.BoolVar(&flags.SkipHostnameVerify, "insecure-skip-hostname-verify", false, "skip TLS hostname verification; exclusive with the other TLS flags")
	f.BoolVar(&flags.AllowInvalidCertificate, "allow-invalid-certificate", false, "accept any TLS certificate; exclusive with the other TLS flags")

	return cmd
}

// run is the driver state machine: ResolveConfig → BuildTlsPolicy → Connect
// → Execute → Materialize → Write → Flush. Any failure short-circuits to the
// caller, which classifies it.
func run(ctx context.Context, flags config.Flags, stdout, stderr io.Writer) error {
	cfg, err := config.Resolve(flags)
	if err != nil {
		return err
	}
	log := logging.New(stderr, cfg.Verbose, cfg.Quiet)

	if cfg.DumpConfig {
		return cfg.Dump(stdout)
	}

	policy, err := tlspolicy.Resolve(cfg.TLS)
	if err != nil {
		return err
	}
	// Warnings precede any network activity.
	policy.DisplaySecurityWarnings(log)
	log.Debug().Str("tls_mode", policy.Mode.String()).Msg("resolved TLS policy")

	query, err := cfg.LoadQuery()
	if err != nil {
		return err
	}

	conn, err := openDatabase(ctx, cfg.DBURL, policy)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Debug().Str("url", cfg.DBURL).Msg("connected")

	rows, err := conn.Execute(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	out, err := config.Fs.Create(cfg.Output)
	if err != nil {
		return exitcode.IO(fmt.Sprintf("cannot create output file %q", cfg.Output), err)
	}

	count, err := writer.Write(cfg.Format, rows, out, writer.Options{Pretty: cfg.Pretty})
	if err != nil {
		// A partial file may remain on disk; callers needing atomicity
		// should write to a temporary path and rename on success.
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return exitcode.IO(fmt.Sprintf("closing output file %q", cfg.Output), err)
	}

	log.Info().Int("rows", count).Str("format", string(cfg.Format)).Str("output", cfg.Output).Msg("wrote output")

	if count == 0 && !cfg.AllowEmpty {
		return exitcode.ErrNoRows
	}
	return nil
}

// printError renders the single failure line, redacted. Verbose mode also
// prints the cause chain.
func printError(w io.Writer, err error, verbose bool) {
	prefix := color.New(color.FgRed, color.Bold).Sprint("error:")
	fmt.Fprintf(w, "%s %s\n", prefix, redact.Redact(err.Error()))
	if verbose {
		for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
			fmt.Fprintf(w, "  caused by: %s\n", redact.Redact(cause.Error()))
		}
	}
}

// Package config resolves the runtime configuration from command-line
// flags, environment variables, and an optional config file, with the
// precedence CLI flag > environment > config file > built-in default.
//
// Recognized environment variables: DATABASE_URL, DATABASE_QUERY,
// OUTPUT_FILE. An optional .gold-digger.yaml in the working directory or the
// home directory supplies defaults below environment precedence.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"unicode/utf8"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/EvilBit-Labs/gold-digger/internal/exitcode"
	"github.com/EvilBit-Labs/gold-digger/internal/redact"
	"github.com/EvilBit-Labs/gold-digger/internal/tlspolicy"
	"github.com/EvilBit-Labs/gold-digger/internal/writer"
)

// Fs is the filesystem used for the config file and the query file. Tests
// replace it with an in-memory filesystem.
var Fs = afero.NewOsFs()

// Flags is the raw command-line surface as parsed by cobra. Empty strings
// mean "not provided".
type Flags struct {
	DBURL      string
	Query      string
	QueryFile  string
	Output     string
	Format     string
	Verbose    bool
	Quiet      bool
	AllowEmpty bool
	Pretty     bool
	DumpConfig bool

	TLSCAFile               string
	SkipHostnameVerify      bool
	AllowInvalidCertificate bool
}

// Config is the resolved, immutable runtime configuration.
type Config struct {
	DBURL      string
	Query      string
	QueryFile  string
	Output     string
	Format     writer.Format
	Verbose    bool
	Quiet      bool
	AllowEmpty bool
	Pretty     bool
	DumpConfig bool
	TLS        tlspolicy.Options
}

// Resolve merges flags, environment and config file, and enforces the
// configuration invariants. Every violation maps to a configuration error
// (exit 2).
func Resolve(flags Flags) (*Config, error) {
	v := viper.New()
	v.SetFs(Fs)
	v.SetConfigName(".gold-digger")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
	}
	// The config file is optional; a missing one is not an error.
	_ = v.ReadInConfig()

	if err := v.BindEnv("database_url", "DATABASE_URL"); err != nil {
		return nil, exitcode.Config("binding DATABASE_URL", err)
	}
	if err := v.BindEnv("query", "DATABASE_QUERY"); err != nil {
		return nil, exitcode.Config("binding DATABASE_QUERY", err)
	}
	if err := v.BindEnv("output", "OUTPUT_FILE"); err != nil {
		return nil, exitcode.Config("binding OUTPUT_FILE", err)
	}

	if flags.Verbose && flags.Quiet {
		return nil, exitcode.Config("--verbose cannot be used with --quiet", nil)
	}
	if flags.Query != "" && flags.QueryFile != "" {
		return nil, exitcode.Config("--query cannot be used with --query-file", nil)
	}

	cfg := &Config{
		DBURL:      firstNonEmpty(flags.DBURL, v.GetString("database_url")),
		Query:      flags.Query,
		QueryFile:  flags.QueryFile,
		Output:     firstNonEmpty(flags.Output, v.GetString("output")),
		Verbose:    flags.Verbose,
		Quiet:      flags.Quiet,
		AllowEmpty: flags.AllowEmpty || v.GetBool("allow_empty"),
		Pretty:     flags.Pretty || v.GetBool("pretty"),
		DumpConfig: flags.DumpConfig,
		TLS: tlspolicy.Options{
			CAFile:                  flags.TLSCAFile,
			SkipHostnameVerify:      flags.SkipHostnameVerify,
			AllowInvalidCertificate: flags.AllowInvalidCertificate,
		},
	}

	// The environment query applies only when neither query flag is given.
	if cfg.Query == "" && cfg.QueryFile == "" {
		cfg.Query = v.GetString("query")
	}

	if cfg.DBURL == "" {
		return nil, exitcode.Config("missing required database URL: pass --db-url or set DATABASE_URL", nil)
	}
	if cfg.Query == "" && cfg.QueryFile == "" {
		return nil, exitcode.Config("missing required query: pass --query, --query-file, or set DATABASE_QUERY", nil)
	}
	if cfg.Output == "" {
		return nil, exitcode.Config("missing required output path: pass --output or set OUTPUT_FILE", nil)
	}

	formatName := firstNonEmpty(flags.Format, v.GetString("format"))
	if formatName != "" {
		format, err := writer.ParseFormat(formatName)
		if err != nil {
			return nil, err
		}
		cfg.Format = format
	} else {
		cfg.Format = writer.FromExtension(cfg.Output)
	}

	return cfg, nil
}

// LoadQuery returns the SQL text: the inline query, or the contents of the
// query file, which must be valid UTF-8.
func (c *Config) LoadQuery() (string, error) {
	if c.Query != "" {
		return c.Query, nil
	}
	data, err := afero.ReadFile(Fs, c.QueryFile)
	if err != nil {
		return "", exitcode.Config(fmt.Sprintf("cannot read query file %q", c.QueryFile), err)
	}
	if !utf8.Valid(data) {
		return "", exitcode.Config(fmt.Sprintf("query file %q is not valid UTF-8", c.QueryFile), nil)
	}
	return string(data), nil
}

// dumpView is the redacted JSON shape of --dump-config output. Field order
// is fixed by the struct, so the output is deterministic.
type dumpView struct {
	DatabaseURL string  `json:"database_url"`
	Query       string  `json:"query,omitempty"`
	QueryFile   string  `json:"query_file,omitempty"`
	Output      string  `json:"output"`
	Format      string  `json:"format"`
	Verbose     bool    `json:"verbose"`
	Quiet       bool    `json:"quiet"`
	AllowEmpty  bool    `json:"allow_empty"`
	Pretty      bool    `json:"pretty"`
	TLS         dumpTLS `json:"tls"`
}

type dumpTLS struct {
	CAFile                  string `json:"ca_file,omitempty"`
	SkipHostnameVerify      bool   `json:"insecure_skip_hostname_verify"`
	AllowInvalidCertificate bool   `json:"allow_invalid_certificate"`
}

// Dump writes the resolved configuration as indented JSON with all secrets
// redacted.
func (c *Config) Dump(w io.Writer) error {
	view := dumpView{
		DatabaseURL: redact.RedactURL(c.DBURL),
		Query:       redact.Redact(c.Query),
		QueryFile:   c.QueryFile,
		Output:      c.Output,
		Format:      string(c.Format),
		Verbose:     c.Verbose,
		Quiet:       c.Quiet,
		AllowEmpty:  c.AllowEmpty,
		Pretty:      c.Pretty,
		TLS: dumpTLS{
			CAFile:                  filepath.ToSlash(c.TLS.CAFile),
			SkipHostnameVerify:      c.TLS.SkipHostnameVerify,
			AllowInvalidCertificate: c.TLS.AllowInvalidCertificate,
		},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

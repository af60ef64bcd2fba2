// Package tlspolicy resolves the user's TLS flags into exactly one
// validation mode, produces the driver SSL options for it, and owns the
// mandatory security warnings for the insecure modes.
//
// TLS support is always compiled in. There is no fallback to cleartext
// unless the database URL itself disables TLS, which the connection layer
// passes through to the driver unchanged.
package tlspolicy

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"sync"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/EvilBit-Labs/gold-digger/internal/exitcode"
)

// Fs is the filesystem used to read CA files. Tests replace it with an
// in-memory filesystem.
var Fs = afero.NewOsFs()

// Mode is the resolved TLS validation mode.
type Mode int

const (
	// ModePlatform validates server certificates against the host trust store.
	ModePlatform Mode = iota
	// ModeCustomCA validates against a user-supplied CA bundle.
	ModeCustomCA
	// ModeSkipHostnameVerify validates the chain but not the hostname.
	ModeSkipHostnameVerify
	// ModeAcceptInvalid disables certificate validation entirely.
	ModeAcceptInvalid
)

// String returns the mode name used in diagnostics.
func (m Mode) String() string {
	switch m {
	case ModePlatform:
		return "platform"
	case ModeCustomCA:
		return "custom-ca"
	case ModeSkipHostnameVerify:
		return "skip-hostname-verification"
	case ModeAcceptInvalid:
		return "accept-invalid"
	default:
		return "unknown"
	}
}

// Options are the raw TLS flags from the command line. At most one may be
// set.
type Options struct {
	CAFile                  string
	SkipHostnameVerify      bool
	AllowInvalidCertificate bool
}

// Policy is a resolved TLS policy: the validation mode, the tls.Config to
// register with the driver (nil for ModePlatform, which uses the driver's
// built-in system-roots mode), and the warnings owed to the user.
type Policy struct {
	Mode     Mode
	CAFile   string
	Warnings []string

	tlsConfig *tls.Config
}

// Registered driver TLS config names, one per non-platform mode.
const (
	customCAConfigName      = "gold-digger-custom-ca"
	skipHostnameConfigName  = "gold-digger-skip-hostname"
	acceptInvalidConfigName = "gold-digger-accept-invalid"
)

// Resolve derives a policy from the raw options. Rules are evaluated in
// order: exclusivity first, then custom CA, then hostname skip, then
// accept-invalid, with platform validation as the default.
func Resolve(opts Options) (*Policy, error) {
	set := 0
	if opts.CAFile != "" {
		set++
	}
	if opts.SkipHostnameVerify {
		set++
	}
	if opts.AllowInvalidCertificate {
		set++
	}
	if set > 1 {
		return nil, exitcode.Config(
			"--tls-ca-file, --insecure-skip-hostname-verify and --allow-invalid-certificate cannot be used with each other", nil)
	}

	switch {
	case opts.CAFile != "":
		pool, err := loadCAPool(opts.CAFile)
		if err != nil {
			return nil, err
		}
		return &Policy{
			Mode:      ModeCustomCA,
			CAFile:    opts.CAFile,
			tlsConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12},
		}, nil

	case opts.SkipHostnameVerify:
		cfg, err := skipHostnameConfig()
		if err != nil {
			return nil, err
		}
		return &Policy{
			Mode:      ModeSkipHostnameVerify,
			tlsConfig: cfg,
			Warnings: []string{
				"TLS hostname verification is disabled (--insecure-skip-hostname-verify): " +
					"the server certificate chain is still validated, but a valid certificate " +
					"for a different host will be accepted",
			},
		}, nil

	case opts.AllowInvalidCertificate:
		return &Policy{
			Mode: ModeAcceptInvalid,
			tlsConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402 -- explicit operator opt-in
				MinVersion:         tls.VersionTLS12,
			},
			Warnings: []string{
				"TLS certificate validation is disabled (--allow-invalid-certificate): " +
					"any certificate, including self-signed and expired ones, will be accepted; " +
					"the connection is vulnerable to man-in-the-middle attacks",
			},
		}, nil

	default:
		return &Policy{Mode: ModePlatform}, nil
	}
}

// DriverTLSValue returns the value for the driver's tls DSN parameter,
// registering the mode's tls.Config with the driver when the mode needs one.
// Registration is process-wide and idempotent.
func (p *Policy) DriverTLSValue() (string, error) {
	switch p.Mode {
	case ModePlatform:
		// The driver's built-in "true" mode consults the system trust store.
		return "true", nil
	case ModeCustomCA:
		return registerOnce(customCAConfigName, p.tlsConfig)
	case ModeSkipHostnameVerify:
		return registerOnce(skipHostnameConfigName, p.tlsConfig)
	case ModeAcceptInvalid:
		return registerOnce(acceptInvalidConfigName, p.tlsConfig)
	default:
		return "", exitcode.Config(fmt.Sprintf("unknown TLS validation mode %d", p.Mode), nil)
	}
}

// DisplaySecurityWarnings emits the policy's warnings on the diagnostic
// channel. Warnings are mandatory: they bypass --quiet and must be rendered
// before any network activity.
func (p *Policy) DisplaySecurityWarnings(log zerolog.Logger) {
	for _, w := range p.Warnings {
		log.Warn().Msg(w)
	}
}

var (
	registerMu sync.Mutex
	registered = map[string]bool{}
)

// registerOnce registers cfg under name with the mysql driver exactly once
// per process. Subsequent calls are no-ops returning the same name.
func registerOnce(name string, cfg *tls.Config) (string, error) {
	registerMu.Lock()
	defer registerMu.Unlock()
	if registered[name] {
		return name, nil
	}
	if err := mysql.RegisterTLSConfig(name, cfg); err != nil {
		return "", exitcode.Connection("registering TLS configuration", err)
	}
	registered[name] = true
	return name, nil
}

// loadCAPool reads and parses a PEM CA bundle. Failures are configuration
// errors that point the user back at the flag.
func loadCAPool(path string) (*x509.CertPool, error) {
	pem, err := afero.ReadFile(Fs, path)
	if err != nil {
		return nil, exitcode.Config(fmt.Sprintf("cannot read CA file %q given to --tls-ca-file", path), err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, exitcode.Config(
			fmt.Sprintf("CA file %q given to --tls-ca-file contains no valid PEM certificates; "+
				"pass a PEM bundle, or use --insecure-skip-hostname-verify / --allow-invalid-certificate "+
				"if certificate validation should be relaxed instead", path), nil)
	}
	return pool, nil
}

// skipHostnameConfig builds a tls.Config that still validates the
// certificate chain against the platform trust store but skips hostname
// verification. crypto/tls has no direct switch for this, so chain
// verification moves into VerifyPeerCertificate with InsecureSkipVerify set.
func skipHostnameConfig() (*tls.Config, error) {
	roots, err := x509.SystemCertPool()
	if err != nil {
		return nil, exitcode.Connection("loading platform trust store", err)
	}
	return &tls.Config{
		InsecureSkipVerify: true, // #nosec G402 -- chain is verified below, only the hostname check is skipped
		MinVersion:         tls.VersionTLS12,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			certs := make([]*x509.Certificate, 0, len(rawCerts))
			for _, raw := range rawCerts {
				cert, err := x509.ParseCertificate(raw)
				if err != nil {
					return err
				}
				certs = append(certs, cert)
			}
			if len(certs) == 0 {
				return fmt.Errorf("tls: server presented no certificates")
			}
			opts := x509.VerifyOptions{
				Roots:         roots,
				Intermediates: x509.NewCertPool(),
				// DNSName left empty: hostname verification is skipped.
			}
			for _, cert := range certs[1:] {
				opts.Intermediates.AddCert(cert)
			}
			_, err := certs[0].Verify(opts)
			return err
		},
	}, nil
}

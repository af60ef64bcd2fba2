package tlspolicy

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EvilBit-Labs/gold-digger/internal/exitcode"
)

// A self-signed certificate is enough to exercise PEM parsing.
const testCAPEM = `-----BEGIN CERTIFICATE-----
MIIBhTCCASugAwIBAgIQIRi6zePL6mKjOipn+dNuaTAKBggqhkjOPQQDAjASMRAw
DgYDVQQKEwdBY21lIENvMB4XDTE3MTAyMDE5NDMwNloXDTE4MTAyMDE5NDMwNlow
EjEQMA4GA1UEChMHQWNtZSBDbzBZMBMGByqGSM49AgEGCCqGSM49AwEHA0IABD0d
7VNhbWvZLWPuj/RtHFjvtJBEwOkhbN/BnnE8rnZR8+sbwnc/KhCk3FhnpHZnQz7B
5aETbbIgmuvewdjvSBSjYzBhMA4GA1UdDwEB/wQEAwICpDATBgNVHSUEDDAKBggr
BgEFBQcDATAPBgNVHRMBAf8EBTADAQH/MCkGA1UdEQQiMCCCDmxvY2FsaG9zdDo1
NDUzgg4xMjcuMC4wLjE6NTQ1MzAKBggqhkjOPQQDAgNIADBFAiEA2zpJEPQyz6/l
Wf86aX6PepsntZv2GYlA5UpabfT2EZICICpJ5h/iI+i341gBmLiAFQOyTDT+/wQc
6MF9+Yw1Yy0t
-----END CERTIFICATE-----
`

func TestResolveMutualExclusion(t *testing.T) {
	conflicting := []Options{
		{CAFile: "ca.pem", SkipHostnameVerify: true},
		{CAFile: "ca.pem", AllowInvalidCertificate: true},
		{SkipHostnameVerify: true, AllowInvalidCertificate: true},
		{CAFile: "ca.pem", SkipHostnameVerify: true, AllowInvalidCertificate: true},
	}
	for _, opts := range conflicting {
		_, err := Resolve(opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be used with")
		assert.Equal(t, exitcode.ConfigError, exitcode.FromError(err))
	}
}

func TestResolvePlatformDefault(t *testing.T) {
	policy, err := Resolve(Options{})
	require.NoError(t, err)
	assert.Equal(t, ModePlatform, policy.Mode)
	assert.Empty(t, policy.Warnings)

	name, err := policy.DriverTLSValue()
	require.NoError(t, err)
	assert.Equal(t, "true", name)
}

func TestResolveCustomCA(t *testing.T) {
	orig := Fs
	Fs = afero.NewMemMapFs()
	t.Cleanup(func() { Fs = orig })

	require.NoError(t, afero.WriteFile(Fs, "/ca.pem", []byte(testCAPEM), 0o600))

	policy, err := Resolve(Options{CAFile: "/ca.pem"})
	require.NoError(t, err)
	assert.Equal(t, ModeCustomCA, policy.Mode)
	assert.Equal(t, "/ca.pem", policy.CAFile)
	assert.Empty(t, policy.Warnings)

	name, err := policy.DriverTLSValue()
	require.NoError(t, err)
	assert.Equal(t, "gold-digger-custom-ca", name)

	// Registration is idempotent.
	again, err := policy.DriverTLSValue()
	require.NoError(t, err)
	assert.Equal(t, name, again)
}

func TestResolveCustomCAMissingFile(t *testing.T) {
	orig := Fs
	Fs = afero.NewMemMapFs()
	t.Cleanup(func() { Fs = orig })

	_, err := Resolve(Options{CAFile: "/nope.pem"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--tls-ca-file")
	assert.Equal(t, exitcode.ConfigError, exitcode.FromError(err))
}

func TestResolveCustomCABadPEM(t *testing.T) {
	orig := Fs
	Fs = afero.NewMemMapFs()
	t.Cleanup(func() { Fs = orig })

	require.NoError(t, afero.WriteFile(Fs, "/ca.pem", []byte("this is not PEM"), 0o600))

	_, err := Resolve(Options{CAFile: "/ca.pem"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid PEM certificates")
	assert.Equal(t, exitcode.ConfigError, exitcode.FromError(err))
}

func TestResolveSkipHostname(t *testing.T) {
	policy, err := Resolve(Options{SkipHostnameVerify: true})
	require.NoError(t, err)
	assert.Equal(t, ModeSkipHostnameVerify, policy.Mode)
	require.Len(t, policy.Warnings, 1)
	assert.Contains(t, policy.Warnings[0], "hostname verification is disabled")
}

func TestResolveAcceptInvalid(t *testing.T) {
	policy, err := Resolve(Options{AllowInvalidCertificate: true})
	require.NoError(t, err)
	assert.Equal(t, ModeAcceptInvalid, policy.Mode)
	require.Len(t, policy.Warnings, 1)
	assert.Contains(t, policy.Warnings[0], "certificate validation is disabled")
	assert.Contains(t, policy.Warnings[0], "man-in-the-middle")
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "platform", ModePlatform.String())
	assert.Equal(t, "custom-ca", ModeCustomCA.String())
	assert.Equal(t, "skip-hostname-verification", ModeSkipHostnameVerify.String())
	assert.Equal(t, "accept-invalid", ModeAcceptInvalid.String())
}

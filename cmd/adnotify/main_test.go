package main

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mitchellh/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{"version", []string{"version"}, 0, "adnotify version " + version},
		{"short version", []string{"version", "-short"}, 0, version},
		{"help lists commands", []string{"-help"}, 0, "watch"},
		{"decode", []string{"decode", "0400010005f000000000000000000e100000000000000000c0a80101"}, 0, "A 192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(tt.args, strings.NewReader(""), &stdout, &stderr)
			assert.Equal(t, tt.wantCode, code, stderr.String())
			assert.Contains(t, stdout.String()+stderr.String(), tt.wantOut)
		})
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"serve"}, strings.NewReader(""), &stdout, &stderr)
	assert.NotEqual(t, 0, code)
}

func TestVersionCommand(t *testing.T) {
	ui := cli.NewMockUi()
	c := newVersionCommand(ui)

	assert.Equal(t, 0, c.Run(nil))
	out := ui.OutputWriter.String()
	assert.Contains(t, out, "Commit:")
	assert.Contains(t, out, "Go version:")

	assert.Equal(t, 1, c.Run([]string{"-bogus"}))
}

func TestUsage(t *testing.T) {
	fs := flag.NewFlagSet("x", flag.ContinueOnError)
	fs.String("addr", "", "Domain controller `host`.")
	fs.Bool("tls", false, "Use TLS.")
	fs.Int("buffer", 64, "Buffer size.")

	got := usage("\nUsage: adnotify x\n", fs)
	assert.True(t, strings.HasPrefix(got, "Usage: adnotify x"))
	assert.Contains(t, got, "-addr=<host>")
	assert.Contains(t, got, "Default: 64")
	assert.Contains(t, got, "-tls\n     Use TLS.")
}

func TestDirectoryFlagsLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adnotify.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
directory:
  address: dc01.test.local:389
  bindDN: CN=svc,DC=test,DC=local
  password: fromfile
watch:
  target: DC=file,DC=test.local,CN=MicrosoftDNS,DC=DomainDnsZones,DC=test,DC=local
  scope: sub
logging:
  level: warn
`), 0o600))

	tests := []struct {
		name   string
		args   []string
		target string
		check  func(t *testing.T, f *directoryFlags, err error)
	}{
		{
			name: "file values",
			args: []string{"-config", path},
			check: func(t *testing.T, f *directoryFlags, err error) {
				require.NoError(t, err)
			},
		},
		{
			name:   "flags override file",
			args:   []string{"-config", path, "-addr", "10.0.0.5", "-tls", "-password", "fromflag", "-scope", "base", "-attr", "dnsRecord", "-attr", "name"},
			target: "DC=srv5,DC=test.local,CN=MicrosoftDNS,DC=DomainDnsZones,DC=test,DC=local",
		},
		{
			name: "target required",
			args: []string{"-addr", "10.0.0.5"},
			check: func(t *testing.T, f *directoryFlags, err error) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "watch.target")
			},
		},
		{
			name: "missing file",
			args: []string{"-config", filepath.Join(t.TempDir(), "nope.yaml")},
			check: func(t *testing.T, f *directoryFlags, err error) {
				require.Error(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f directoryFlags
			fs := f.flagSet("test")
			require.NoError(t, fs.Parse(tt.args))
			cfg, err := f.load(fs, tt.target)
			if tt.check != nil {
				tt.check(t, &f, err)
				if err != nil {
					return
				}
			}
			require.NoError(t, err)

			switch tt.name {
			case "file values":
				assert.Equal(t, "dc01.test.local:389", cfg.Directory.Address)
				assert.Equal(t, "fromfile", cfg.Directory.Password)
				assert.Equal(t, "sub", cfg.Watch.Scope)
				assert.Equal(t, "warn", cfg.Logging.Level)
				assert.Equal(t, []string{"dnsRecord"}, cfg.Watch.Attributes)
			case "flags override file":
				assert.Equal(t, "10.0.0.5:636", cfg.Directory.Address)
				assert.True(t, cfg.Directory.TLS)
				assert.Equal(t, "fromflag", cfg.Directory.Password)
				assert.Equal(t, "CN=svc,DC=test,DC=local", cfg.Directory.BindDN)
				assert.Equal(t, "base", cfg.Watch.Scope)
				assert.Equal(t, []string{"dnsRecord", "name"}, cfg.Watch.Attributes)
				assert.Equal(t, tt.target, cfg.Watch.Target)
			}
		})
	}
}

func TestSingleTarget(t *testing.T) {
	got, err := singleTarget(nil)
	assert.NoError(t, err)
	assert.Empty(t, got)

	got, err = singleTarget([]string{"DC=a"})
	assert.NoError(t, err)
	assert.Equal(t, "DC=a", got)

	_, err = singleTarget([]string{"DC=a", "DC=b"})
	assert.Error(t, err)
}

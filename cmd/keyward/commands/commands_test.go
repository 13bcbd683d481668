package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cli struct {
	t    *testing.T
	home string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	home := t.TempDir()
	cfg := "log:\n  level: error\nscrypt:\n  n: 1024\n"
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(cfg), 0o600))
	return &cli{t: t, home: home}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--home", c.home, "-p", "Tr0ub4dor&3-horse"}, args...)
	err := run(full, &stdout, &stderr)
	return stdout.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, strings.Join(args, " "))
	return out
}

func TestInitFingerprintWhoami(t *testing.T) {
	c := newCLI(t)
	aci, pni := uuid.NewString(), uuid.NewString()

	out := c.mustRun("init", "--aci", aci, "--pni", pni, "--number", "+1 555 000 1111")
	assert.Contains(t, out, "Identity created.")

	fp := c.mustRun("fingerprint")
	assert.Contains(t, out, strings.Split(fp, "\n")[0])

	who := c.mustRun("whoami")
	assert.Contains(t, who, "aci="+aci)
	assert.Contains(t, who, "pni="+pni)
	assert.Contains(t, who, "e164=+15550001111")
	assert.Contains(t, who, "device=1")

	_, err := c.run("init", "--aci", aci, "--pni", pni)
	assert.Error(t, err)
}

func TestInit_WeakPassphrase(t *testing.T) {
	c := newCLI(t)
	var stdout, stderr bytes.Buffer
	err := run([]string{"--home", c.home, "-p", "short", "init",
		"--aci", uuid.NewString(), "--pni", uuid.NewString()}, &stdout, &stderr)
	assert.Error(t, err)
}

func TestResolve_MergesOnCertainPairing(t *testing.T) {
	c := newCLI(t)
	aci := uuid.NewString()

	first := c.mustRun("resolve", "--number", "+32474000001")
	assert.Contains(t, first, "#1 aci=- pni=- e164=+32474000001")
	assert.Contains(t, first, "changed=true")

	second := c.mustRun("resolve", aci)
	assert.Contains(t, second, "#2 aci="+aci)

	merged := c.mustRun("resolve", "--certain", "--number", "+32474000001", "--aci", aci)
	assert.Contains(t, merged, "aci="+aci)
	assert.Contains(t, merged, "e164=+32474000001")

	list := c.mustRun("recipients")
	assert.Equal(t, 1, strings.Count(list, "\n"), list)

	again := c.mustRun("resolve", "--aci", aci)
	assert.Contains(t, again, "changed=false")
}

func TestResolve_BadInput(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("resolve")
	assert.Error(t, err)
	_, err = c.run("resolve", "--aci", "not-a-uuid")
	assert.Error(t, err)
	_, err = c.run("resolve", "--number", "12")
	assert.Error(t, err)
}

func TestPrekeysAndSetNumber(t *testing.T) {
	c := newCLI(t)
	c.mustRun("init", "--aci", uuid.NewString(), "--pni", uuid.NewString(), "--number", "+15550001111")

	out := c.mustRun("prekeys", "--scope", "pni", "-n", "3")
	assert.Contains(t, out, `"scope": 2`)
	assert.Contains(t, out, `"signed_pre_key_signature"`)

	pni := uuid.NewString()
	self := c.mustRun("set-number", "+15550002222", "--pni", pni)
	assert.Contains(t, self, "pni="+pni)
	assert.Contains(t, self, "e164=+15550002222")

	_, err := c.run("prekeys", "--scope", "nope")
	assert.Error(t, err)
}

func TestPassphraseSaveAndUnlock(t *testing.T) {
	home := t.TempDir()
	cfg := "log:\n  level: error\nscrypt:\n  n: 1024\nkeyring:\n  enabled: true\n  backend: file\n  file_dir: " +
		filepath.Join(home, "ring") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(cfg), 0o600))
	t.Setenv(keyringPasswordEnv, "unlock")

	c := &cli{t: t, home: home}
	c.mustRun("init", "--aci", uuid.NewString(), "--pni", uuid.NewString())
	assert.Contains(t, c.mustRun("passphrase", "save"), "Passphrase saved.")

	// Without -p the stored passphrase unlocks the sealed identity files.
	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"--home", home, "fingerprint"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "ACI fingerprint:")

	c.mustRun("passphrase", "forget")
	stdout.Reset()
	err := run([]string{"--home", home, "fingerprint"}, &stdout, &stderr)
	assert.Error(t, err)
}

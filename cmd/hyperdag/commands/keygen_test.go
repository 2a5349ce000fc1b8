package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mosaicnetworks/hyperdag/src/crypto/keys"
)

func TestKeygen(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "keys", "priv_key")
	pub := filepath.Join(dir, "keys", "key.pub")

	cmd := NewKeygenCmd()
	out := new(bytes.Buffer)
	cmd.SetOutput(out)
	cmd.SetArgs([]string{"--priv", priv, "--pub", pub})

	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}

	key, err := keys.NewSimpleKeyfile(priv).ReadKey()
	if err != nil {
		t.Fatal(err)
	}

	pubHex, err := os.ReadFile(pub)
	if err != nil {
		t.Fatal(err)
	}
	if string(pubHex) != keys.PublicKeyHex(&key.PublicKey) {
		t.Fatalf("public key file does not match the private key")
	}
	if !strings.Contains(out.String(), keys.Address(&key.PublicKey)) {
		t.Fatalf("address should be printed, got %q", out.String())
	}

	if err := cmd.Execute(); err == nil {
		t.Fatalf("keygen should refuse to overwrite an existing key")
	}
}

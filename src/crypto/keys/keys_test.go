package keys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mosaicnetworks/hyperdag/src/common"
	hcrypto "github.com/mosaicnetworks/hyperdag/src/crypto"
)

func TestSimpleKeyfile(t *testing.T) {
	simpleKeyfile := NewSimpleKeyfile(filepath.Join(t.TempDir(), "priv_key"))

	// Try a read, should get nothing
	key, err := simpleKeyfile.ReadKey()
	if err == nil {
		t.Fatalf("ReadKey should generate an error")
	}
	if key != nil {
		t.Fatalf("key is not nil")
	}

	key, _ = GenerateECDSAKey()

	if err := simpleKeyfile.WriteKey(key); err != nil {
		t.Fatalf("err: %v", err)
	}

	nKey, err := simpleKeyfile.ReadKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if nKey.D.Cmp(key.D) != 0 || nKey.X.Cmp(key.X) != 0 || nKey.Y.Cmp(key.Y) != 0 {
		t.Fatalf("Keys do not match")
	}
}

func TestFilePermissions(t *testing.T) {
	dir := t.TempDir()

	key, _ := GenerateECDSAKey()
	rawKey := PrivateKeyHex(key)

	badKeyPath := filepath.Join(dir, "priv_key_bad")

	shouldErr := []os.FileMode{
		0777, 0766, 0744,
		0677, 0666, 0644,
	}

	for _, fm := range shouldErr {
		os.Remove(badKeyPath)
		if err := os.WriteFile(badKeyPath, []byte(rawKey), fm); err != nil {
			t.Fatal(err)
		}
		if err := os.Chmod(badKeyPath, fm); err != nil {
			t.Fatal(err)
		}

		if _, err := NewSimpleKeyfile(badKeyPath).ReadKey(); err == nil {
			t.Fatalf("%o || keyfile should return permissions error", fm)
		}
	}

	goodKeyPath := filepath.Join(dir, "priv_key_good")
	if err := os.WriteFile(goodKeyPath, []byte(rawKey), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewSimpleKeyfile(goodKeyPath).ReadKey(); err != nil {
		t.Fatalf("keyfile should not return error. Got %v", err)
	}
}

func TestSignVerify(t *testing.T) {
	privKey, _ := GenerateECDSAKey()
	pub := FromPublicKey(&privKey.PublicKey)

	if len(pub) != 33 {
		t.Fatalf("compressed public key should be 33 bytes, not %d", len(pub))
	}

	digest := hcrypto.SHA256([]byte("J'aime mieux forger mon ame que la meubler"))

	sig, err := Sign(privKey, digest)
	if err != nil {
		t.Fatal(err)
	}

	if !Verify(pub, digest, sig) {
		t.Fatalf("signature should verify")
	}

	other := hcrypto.SHA256([]byte("something else"))
	if Verify(pub, other, sig) {
		t.Fatalf("signature should not verify another digest")
	}

	otherKey, _ := GenerateECDSAKey()
	if Verify(FromPublicKey(&otherKey.PublicKey), digest, sig) {
		t.Fatalf("signature should not verify under another key")
	}

	if Verify(pub, digest, []byte("garbage")) {
		t.Fatalf("garbage signature should not verify")
	}
}

func TestPublicKeyRoundTrip(t *testing.T) {
	privKey, _ := GenerateECDSAKey()

	pub, err := ToPublicKey(FromPublicKey(&privKey.PublicKey))
	if err != nil {
		t.Fatal(err)
	}
	if pub.X.Cmp(privKey.X) != 0 || pub.Y.Cmp(privKey.Y) != 0 {
		t.Fatalf("public keys do not match")
	}

	addr := Address(&privKey.PublicKey)
	if !common.IsHex64(addr) {
		t.Fatalf("address %q should be 64 hex characters", addr)
	}
	if addr != AddressFromBytes(FromPublicKey(pub)) {
		t.Fatalf("address should not depend on the parsing path")
	}
}

func TestParsePrivateKey(t *testing.T) {
	if _, err := ParsePrivateKey(make([]byte, 31)); err == nil {
		t.Fatalf("short key should be rejected")
	}
	if _, err := ParsePrivateKey(make([]byte, 32)); err == nil {
		t.Fatalf("zero key should be rejected")
	}

	key, _ := GenerateECDSAKey()
	parsed, err := ParsePrivateKey(DumpPrivateKey(key))
	if err != nil {
		t.Fatal(err)
	}
	if parsed.D.Cmp(key.D) != 0 {
		t.Fatalf("parsed key differs")
	}
}

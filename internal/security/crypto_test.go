package security

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestVaultRoundTrip(t *testing.T) {
	vault, err := NewVault(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create Vault: %v", err)
	}

	token := []byte(`{"access_token":"ya29.test","refresh_token":"1//test","token_type":"Bearer","expiry":"2024-01-01T00:00:00Z"}`)

	sealed, err := vault.Seal(token)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if bytes.Contains([]byte(sealed), []byte("ya29.test")) {
		t.Error("sealed output leaks the plaintext")
	}

	opened, err := vault.Open(sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(opened, token) {
		t.Errorf("expected %s, got %s", token, opened)
	}
}

func TestVaultRejectsBadInput(t *testing.T) {
	vault, err := NewVault(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create Vault: %v", err)
	}

	if _, err := vault.Seal(nil); err == nil {
		t.Error("expected error sealing empty input")
	}

	for _, in := range []string{"", "invalid_base64!", "dGVzdA=="} {
		_, err := vault.Open(in)
		if err == nil {
			t.Errorf("expected error opening %q", in)
			continue
		}
		var cryptoErr *CryptoError
		if !errors.As(err, &cryptoErr) {
			t.Errorf("expected CryptoError for %q, got %T", in, err)
		}
	}
}

func TestVaultsShareSalt(t *testing.T) {
	dir := t.TempDir()

	first, err := NewVault(dir)
	if err != nil {
		t.Fatalf("Failed to create first Vault: %v", err)
	}
	second, err := NewVault(dir)
	if err != nil {
		t.Fatalf("Failed to create second Vault: %v", err)
	}

	sealed, err := first.Seal([]byte("shared"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	opened, err := second.Open(sealed)
	if err != nil {
		t.Fatalf("cross-vault Open failed: %v", err)
	}
	if string(opened) != "shared" {
		t.Errorf("unexpected plaintext %q", opened)
	}

	info, err := os.Stat(filepath.Join(dir, saltFile))
	if err != nil {
		t.Fatalf("salt file missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected salt permissions 0600, got %o", info.Mode().Perm())
	}
}

func TestVaultDifferentSaltCannotOpen(t *testing.T) {
	a, err := NewVault(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create Vault: %v", err)
	}
	b, err := NewVault(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create Vault: %v", err)
	}

	sealed, err := a.Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if _, err := b.Open(sealed); err == nil {
		t.Error("a vault with another salt must not open the data")
	}
}

func TestSealFile(t *testing.T) {
	dir := t.TempDir()
	vault, err := NewVault(dir)
	if err != nil {
		t.Fatalf("Failed to create Vault: %v", err)
	}

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	path := filepath.Join(dir, "payload.enc")

	if err := vault.SealFile(path, payload{Name: "越川", Count: 3}); err != nil {
		t.Fatalf("SealFile failed: %v", err)
	}

	var got payload
	if err := vault.OpenFile(path, &got); err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	if got.Name != "越川" || got.Count != 3 {
		t.Errorf("unexpected payload %+v", got)
	}

	if err := vault.OpenFile(filepath.Join(dir, "missing.enc"), &got); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestMachineIDStable(t *testing.T) {
	first, err := machineID()
	if err != nil {
		t.Fatalf("machineID failed: %v", err)
	}
	second, err := machineID()
	if err != nil {
		t.Fatalf("machineID failed: %v", err)
	}
	if first == "" || first != second {
		t.Errorf("machine ID not stable: %q vs %q", first, second)
	}
}

func BenchmarkSeal(b *testing.B) {
	vault, err := NewVault(b.TempDir())
	if err != nil {
		b.Fatalf("Failed to create Vault: %v", err)
	}
	token := []byte(`{"access_token":"ya29.a0AfH6SMC...","refresh_token":"1//04...","token_type":"Bearer"}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := vault.Seal(token); err != nil {
			b.Fatalf("Seal failed: %v", err)
		}
	}
}

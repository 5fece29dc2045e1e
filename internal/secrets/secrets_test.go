package secrets

import (
	"strings"
	"testing"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestRoundTrip(t *testing.T) {
	c, err := NewCipher(testKey)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	for _, plain := range []string{"", "secret", `{"token":"ya29.abc","email":"a@b.com"}`} {
		enc, err := c.Encrypt(plain)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", plain, err)
		}
		if enc == plain && plain != "" {
			t.Fatalf("ciphertext equals plaintext for %q", plain)
		}
		dec, err := c.Decrypt(enc)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if dec != plain {
			t.Errorf("round trip got %q want %q", dec, plain)
		}
	}
}

func TestNewCipher_BadKeyLength(t *testing.T) {
	if _, err := NewCipher("short"); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestDecrypt_Garbage(t *testing.T) {
	c, _ := NewCipher(testKey)

	if _, err := c.Decrypt("not base64 !!!"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
	if _, err := c.Decrypt("YQ=="); err == nil || !strings.Contains(err.Error(), "too short") {
		t.Fatalf("expected too-short error, got %v", err)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	c1, _ := NewCipher(testKey)
	c2, _ := NewCipher("fedcba9876543210fedcba9876543210")

	enc, err := c1.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := c2.Decrypt(enc); err == nil {
		t.Fatal("expected decryption failure with wrong key")
	}
}

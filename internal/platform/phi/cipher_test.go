package phi

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate test key: %v", err)
	}
	c, err := NewCipher(key)
	if err != nil {
		t.Fatalf("create cipher: %v", err)
	}
	return c
}

func TestKeyFromHex(t *testing.T) {
	t.Run("valid key", func(t *testing.T) {
		key, err := KeyFromHex(strings.Repeat("ab", 32))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(key) != 32 {
			t.Fatalf("key length = %d, want 32", len(key))
		}
	})

	t.Run("empty is fatal", func(t *testing.T) {
		_, err := KeyFromHex("")
		if !errors.Is(err, ErrKeyUnavailable) {
			t.Fatalf("expected ErrKeyUnavailable, got %v", err)
		}
	})

	t.Run("not hex", func(t *testing.T) {
		_, err := KeyFromHex(strings.Repeat("zz", 32))
		if !errors.Is(err, ErrKeyUnavailable) {
			t.Fatalf("expected ErrKeyUnavailable, got %v", err)
		}
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := KeyFromHex("abcd")
		if !errors.Is(err, ErrKeyUnavailable) {
			t.Fatalf("expected ErrKeyUnavailable, got %v", err)
		}
	})
}

func TestNewCipher_RejectsBadKeys(t *testing.T) {
	for _, n := range []int{0, 16, 24, 31, 33, 64} {
		if _, err := NewCipher(make([]byte, n)); err == nil {
			t.Errorf("NewCipher accepted %d-byte key", n)
		}
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c := testCipher(t)

	cases := []string{
		"",
		"Mario",
		"Rossi",
		"RSSMRA85M01H501U",
		"città — àèìòù 日本語 ✚",
		strings.Repeat("a very long clinical note. ", 500),
		"\x00\x01binary\xff",
	}

	for _, plaintext := range cases {
		ct, err := c.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("encrypt %q: %v", plaintext, err)
		}
		got, err := c.Decrypt(ct)
		if err != nil {
			t.Fatalf("decrypt %q: %v", plaintext, err)
		}
		if got != plaintext {
			t.Errorf("round trip mismatch: got %q, want %q", got, plaintext)
		}
	}
}

func TestEncrypt_NonDeterministic(t *testing.T) {
	c := testCipher(t)

	a, err := c.Encrypt("RSSMRA85M01H501U")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	b, err := c.Encrypt("RSSMRA85M01H501U")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if a == b {
		t.Error("two encryptions of the same plaintext produced identical ciphertext")
	}
}

func TestDecrypt_TamperDetection(t *testing.T) {
	c := testCipher(t)

	ct, err := c.Encrypt("sensitive value")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(ct)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Flipping any single byte (nonce, ciphertext, or tag) must fail auth.
	for i := range raw {
		mutated := make([]byte, len(raw))
		copy(mutated, raw)
		mutated[i] ^= 0x01
		_, err := c.Decrypt(base64.StdEncoding.EncodeToString(mutated))
		if !errors.Is(err, ErrAuthenticationFailed) {
			t.Fatalf("byte %d: expected ErrAuthenticationFailed, got %v", i, err)
		}
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	a := testCipher(t)
	b := testCipher(t)

	ct, err := a.Encrypt("cross-key")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := b.Decrypt(ct); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestDecrypt_Malformed(t *testing.T) {
	c := testCipher(t)

	t.Run("not base64", func(t *testing.T) {
		if _, err := c.Decrypt("%%% not base64 %%%"); !errors.Is(err, ErrMalformedCiphertext) {
			t.Fatalf("expected ErrMalformedCiphertext, got %v", err)
		}
	})

	t.Run("too short", func(t *testing.T) {
		short := base64.StdEncoding.EncodeToString([]byte("tiny"))
		if _, err := c.Decrypt(short); !errors.Is(err, ErrMalformedCiphertext) {
			t.Fatalf("expected ErrMalformedCiphertext, got %v", err)
		}
	})
}

func TestOptional_PreservesAbsence(t *testing.T) {
	c := testCipher(t)

	enc, err := c.EncryptOptional(nil)
	if err != nil {
		t.Fatalf("encrypt nil: %v", err)
	}
	if enc != nil {
		t.Fatal("EncryptOptional(nil) should stay nil")
	}
	dec, err := c.DecryptOptional(nil)
	if err != nil {
		t.Fatalf("decrypt nil: %v", err)
	}
	if dec != nil {
		t.Fatal("DecryptOptional(nil) should stay nil")
	}

	empty := ""
	encEmpty, err := c.EncryptOptional(&empty)
	if err != nil {
		t.Fatalf("encrypt empty: %v", err)
	}
	if encEmpty == nil {
		t.Fatal("present empty string must not collapse to nil")
	}
	decEmpty, err := c.DecryptOptional(encEmpty)
	if err != nil {
		t.Fatalf("decrypt empty: %v", err)
	}
	if decEmpty == nil || *decEmpty != "" {
		t.Fatalf("round trip of Some(\"\") = %v, want Some(\"\")", decEmpty)
	}
}

func TestEncryptDecryptJSON(t *testing.T) {
	c := testCipher(t)

	type vitals struct {
		HeartRate   int     `json:"heart_rate"`
		TempCelsius float64 `json:"temp_celsius"`
		BP          string  `json:"bp"`
	}

	in := vitals{HeartRate: 72, TempCelsius: 36.8, BP: "120/80"}
	ct, err := c.EncryptJSON(in)
	if err != nil {
		t.Fatalf("encrypt json: %v", err)
	}

	var out vitals
	if err := c.DecryptJSON(ct, &out); err != nil {
		t.Fatalf("decrypt json: %v", err)
	}
	if out != in {
		t.Errorf("json round trip = %+v, want %+v", out, in)
	}

	// Tampered structured blob fails authentication, same as scalars.
	raw, _ := base64.StdEncoding.DecodeString(ct)
	raw[len(raw)-1] ^= 0x01
	var ignored vitals
	err = c.DecryptJSON(base64.StdEncoding.EncodeToString(raw), &ignored)
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestIsCryptoError(t *testing.T) {
	c := testCipher(t)
	_, err := c.Decrypt("garbage")
	if !IsCryptoError(err) {
		t.Errorf("IsCryptoError(%v) = false", err)
	}
	if IsCryptoError(errors.New("unrelated")) {
		t.Error("IsCryptoError(unrelated) = true")
	}
	if _, err := hex.DecodeString("zz"); IsCryptoError(err) {
		t.Error("IsCryptoError should reject non-taxonomy errors")
	}
}

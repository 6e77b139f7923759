package network

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"testing"

	"github.com/cubelink-project/cubelink/internal/protocol"
)

func TestServerHash(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Notch", "4ed1f46bbe04bc756bcb17c0c7ce3e4632f06a48"},
		{"jeb_", "-7c9d5b0044c130109a5d7b5fb5c317c02b4e28c1"},
		{"simon", "88e16a1019277b15d58faf0541e11910eb756f6"},
	}

	for _, tt := range tests {
		if got := ServerHash(tt.name, nil, nil); got != tt.want {
			t.Errorf("ServerHash(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestHandshakeEncryptsForServerKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	token := []byte{9, 8, 7, 6}

	hs, err := NewHandshake(&protocol.EncryptionRequest{ServerID: "", PublicKey: der, VerifyToken: token}, nil)
	if err != nil {
		t.Fatalf("NewHandshake: %v", err)
	}
	if len(hs.Secret) != SharedSecretSize {
		t.Fatalf("secret of %d bytes", len(hs.Secret))
	}

	secret, err := rsa.DecryptPKCS1v15(nil, key, hs.Response.SharedSecret)
	if err != nil || !bytes.Equal(secret, hs.Secret) {
		t.Fatalf("server could not recover the secret: %v", err)
	}
	gotToken, err := rsa.DecryptPKCS1v15(nil, key, hs.Response.VerifyToken)
	if err != nil || !bytes.Equal(gotToken, token) {
		t.Fatalf("server could not recover the verify token: %v", err)
	}
	if want := ServerHash("", hs.Secret, der); hs.ServerHash != want {
		t.Errorf("server hash = %s, want %s", hs.ServerHash, want)
	}
}

func TestHandshakeRejectsBadKey(t *testing.T) {
	_, err := NewHandshake(&protocol.EncryptionRequest{PublicKey: []byte{1, 2, 3}}, nil)
	if !errors.Is(err, protocol.ErrDecryption) {
		t.Fatalf("expected ErrDecryption, got %v", err)
	}
}

func TestCipherStreamsRoundTrip(t *testing.T) {
	secret := bytes.Repeat([]byte{0x42}, SharedSecretSize)
	enc, _, err := NewCipherStreams(secret)
	if err != nil {
		t.Fatalf("NewCipherStreams: %v", err)
	}
	_, dec, _ := NewCipherStreams(secret)

	plain := []byte("a frame that spans more than one block of ciphertext")
	var wire bytes.Buffer
	w := cipher.StreamWriter{S: enc, W: &wire}
	// Two writes must continue the same stream.
	w.Write(plain[:10])
	w.Write(plain[10:])
	if bytes.Contains(wire.Bytes(), plain[:10]) {
		t.Fatal("ciphertext contains plaintext")
	}

	got := make([]byte, len(plain))
	r := cipher.StreamReader{S: dec, R: &wire}
	if _, err := r.Read(got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("decrypted %q", got)
	}

	if _, _, err := NewCipherStreams([]byte{1, 2, 3}); !errors.Is(err, protocol.ErrDecryption) {
		t.Errorf("short secret: expected ErrDecryption, got %v", err)
	}
}

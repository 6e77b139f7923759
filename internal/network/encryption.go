package network

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"fmt"
	"io"
	"math/big"

	"github.com/Tnze/go-mc/net/CFB8"

	"github.com/cubelink-project/cubelink/internal/protocol"
)

// SharedSecretSize is the length of the symmetric session key.
const SharedSecretSize = 16

// NewSharedSecret draws a fresh session key from src.
func NewSharedSecret(src io.Reader) ([]byte, error) {
	secret := make([]byte, SharedSecretSize)
	if _, err := io.ReadFull(src, secret); err != nil {
		return nil, fmt.Errorf("failed to generate shared secret: %w", err)
	}
	return secret, nil
}

// ServerHash computes the session hash: the SHA-1 digest of server id,
// shared secret and encoded public key read as a signed big-endian integer
// and printed in hex without padding.
func ServerHash(serverID string, secret, publicKey []byte) string {
	h := sha1.New()
	h.Write([]byte(serverID))
	h.Write(secret)
	h.Write(publicKey)
	sum := h.Sum(nil)

	negative := sum[0]&0x80 != 0
	if negative {
		twosComplement(sum)
	}
	out := new(big.Int).SetBytes(sum).Text(16)
	if negative {
		return "-" + out
	}
	return out
}

func twosComplement(b []byte) {
	carry := true
	for i := len(b) - 1; i >= 0; i-- {
		b[i] = ^b[i]
		if carry {
			carry = b[i] == 0xFF
			b[i]++
		}
	}
}

// Handshake is the client side of one key exchange.
type Handshake struct {
	Secret     []byte
	ServerHash string
	Response   *protocol.EncryptionResponse
}

// NewHandshake answers an encryption request. Both the secret and the verify
// token are encrypted with the server's public key. A key that cannot be
// parsed fails with ErrDecryption.
func NewHandshake(req *protocol.EncryptionRequest, src io.Reader) (*Handshake, error) {
	if src == nil {
		src = rand.Reader
	}
	parsed, err := x509.ParsePKIXPublicKey(req.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid server public key: %v", protocol.ErrDecryption, err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: server key is %T, not RSA", protocol.ErrDecryption, parsed)
	}

	secret, err := NewSharedSecret(src)
	if err != nil {
		return nil, err
	}
	encSecret, err := rsa.EncryptPKCS1v15(src, pub, secret)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypt shared secret: %v", protocol.ErrDecryption, err)
	}
	encToken, err := rsa.EncryptPKCS1v15(src, pub, req.VerifyToken)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypt verify token: %v", protocol.ErrDecryption, err)
	}

	return &Handshake{
		Secret:     secret,
		ServerHash: ServerHash(req.ServerID, secret, req.PublicKey),
		Response:   &protocol.EncryptionResponse{SharedSecret: encSecret, VerifyToken: encToken},
	}, nil
}

// NewCipherStreams builds the AES/CFB8 pair for a shared secret. The secret
// is both key and IV.
func NewCipherStreams(secret []byte) (enc, dec cipher.Stream, err error) {
	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", protocol.ErrDecryption, err)
	}
	encIV := append([]byte(nil), secret...)
	decIV := append([]byte(nil), secret...)
	return CFB8.NewCFB8Encrypt(block, encIV), CFB8.NewCFB8Decrypt(block, decIV), nil
}

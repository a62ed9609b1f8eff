// Package backup — зашифрованные копии файла SQLite.
//
// Формат: "KBK1" | соль (16 байт) | nonce (24 байта) | XChaCha20-Poly1305(zstd(данные)).
// Ключ выводится из пароля через Argon2id, заголовок входит в associated data.
package backup

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const magic = "KBK1"

// Параметры Argon2id
const (
	saltSize           = 16
	iterations  uint32 = 3
	memory      uint32 = 64 * 1024 // 64 MB
	parallelism uint8  = 2
)

// ErrInvalidBackup — файл повреждён, не является копией или пароль неверный.
var ErrInvalidBackup = errors.New("некорректная резервная копия")

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, iterations, memory, parallelism, chacha20poly1305.KeySize)
}

// Pack сжимает и шифрует data.
func Pack(data []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("пустой ключ резервной копии")
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	compressed := enc.EncodeAll(data, nil)
	_ = enc.Close()

	header := make([]byte, len(magic)+saltSize+chacha20poly1305.NonceSizeX)
	copy(header, magic)
	salt := header[len(magic) : len(magic)+saltSize]
	nonce := header[len(magic)+saltSize:]
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("генерация соли: %w", err)
	}
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("генерация nonce: %w", err)
	}

	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("xchacha20poly1305: %w", err)
	}
	return aead.Seal(header, nonce, compressed, header), nil
}

// Unpack расшифровывает и распаковывает результат Pack.
func Unpack(blob []byte, passphrase string) ([]byte, error) {
	headerSize := len(magic) + saltSize + chacha20poly1305.NonceSizeX
	if len(blob) < headerSize+chacha20poly1305.Overhead || string(blob[:len(magic)]) != magic {
		return nil, ErrInvalidBackup
	}
	header := blob[:headerSize]
	salt := header[len(magic) : len(magic)+saltSize]
	nonce := header[len(magic)+saltSize:]

	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("xchacha20poly1305: %w", err)
	}
	compressed, err := aead.Open(nil, nonce, blob[headerSize:], header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	defer dec.Close()

	data, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	return data, nil
}

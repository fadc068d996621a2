package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// localKey is DBeaver's fixed credentials key. Sharing it lets the same
// routines read the credentials-config.json inside a DBeaver project.
var localKey = []byte{
	186, 187, 74, 159, 119, 74, 184, 83, 201, 108, 45, 101, 61, 254, 84, 74,
}

// Credentials is the decrypted credentials.json, keyed by server profile.
type Credentials struct {
	Version int                        `json:"version"`
	Servers map[string]CredentialEntry `json:"servers"`
}

type CredentialEntry struct {
	Password string `json:"password"`
}

func credentialsPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "credentials.json"), nil
}

// LoadCredentials reads ~/.cubepub/credentials.json. A missing file yields
// an empty store.
func LoadCredentials() (*Credentials, error) {
	path, err := credentialsPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Credentials{Version: 1, Servers: map[string]CredentialEntry{}}, nil
		}
		return nil, err
	}

	plain, err := Decrypt(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, err
	}
	if creds.Servers == nil {
		creds.Servers = map[string]CredentialEntry{}
	}
	return &creds, nil
}

func SaveCredentials(creds *Credentials) error {
	path, err := credentialsPath()
	if err != nil {
		return err
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	encrypted, err := Encrypt(data)
	if err != nil {
		return err
	}
	return os.WriteFile(path, encrypted, 0600)
}

// GetPassword returns the stored password for a server profile, or "".
func GetPassword(server string) (string, error) {
	creds, err := LoadCredentials()
	if err != nil {
		return "", err
	}
	return creds.Servers[server].Password, nil
}

func SetPassword(server, password string) error {
	creds, err := LoadCredentials()
	if err != nil {
		return err
	}
	creds.Servers[server] = CredentialEntry{Password: password}
	return SaveCredentials(creds)
}

func DeletePassword(server string) error {
	creds, err := LoadCredentials()
	if err != nil {
		return err
	}
	if _, ok := creds.Servers[server]; !ok {
		return nil
	}
	delete(creds.Servers, server)
	return SaveCredentials(creds)
}

// Encrypt seals data with AES/CBC/PKCS5Padding; the random IV is prepended.
func Encrypt(data []byte) ([]byte, error) {
	block, err := aes.NewCipher(localKey)
	if err != nil {
		return nil, err
	}

	plaintext := pkcs7Pad(data, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(plaintext))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], plaintext)
	return out, nil
}

// Decrypt reverses Encrypt.
func Decrypt(data []byte) ([]byte, error) {
	block, err := aes.NewCipher(localKey)
	if err != nil {
		return nil, err
	}
	if len(data) < aes.BlockSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	iv := data[:aes.BlockSize]
	ciphertext := append([]byte(nil), data[aes.BlockSize:]...)
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext is not a multiple of the block size")
	}

	cipher.NewCBCDecrypter(block, iv).CryptBlocks(ciphertext, ciphertext)
	return pkcs7Unpad(ciphertext, aes.BlockSize)
}

// pkcs7Pad pads data to a multiple of blockSize.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - (len(data) % blockSize)
	padded := make([]byte, len(data), len(data)+padLen)
	copy(padded, data)
	for i := 0; i < padLen; i++ {
		padded = append(padded, byte(padLen))
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded plaintext length")
	}
	padLen := int(data[len(data)-1])
	if padLen <= 0 || padLen > blockSize || padLen > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for i := 0; i < padLen; i++ {
		if data[len(data)-1-i] != byte(padLen) {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-padLen], nil
}

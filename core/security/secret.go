package security

import (
	"fmt"
	"strings"
)

// EncryptedPrefix 标记经过加密的配置值
const EncryptedPrefix = "enc:"

// SecretProvider 抽象密钥加解密
// 用于读取配置时自动解密 API Key
type SecretProvider interface {
	Decrypt(ciphertext string) (string, error)
	Encrypt(plaintext string) (string, error)
}

// NoOpSecretProvider 明文透传
type NoOpSecretProvider struct{}

func NewNoOpSecretProvider() *NoOpSecretProvider {
	return &NoOpSecretProvider{}
}

func (s *NoOpSecretProvider) Decrypt(ciphertext string) (string, error) {
	return ciphertext, nil
}

func (s *NoOpSecretProvider) Encrypt(plaintext string) (string, error) {
	return plaintext, nil
}

// NewSecretProvider 根据主密钥选择实现，空主密钥返回 NoOp
func NewSecretProvider(masterKey string) (SecretProvider, error) {
	if masterKey == "" {
		return NewNoOpSecretProvider(), nil
	}
	sp, err := NewAESSecretProvider(masterKey)
	if err != nil {
		return nil, err
	}
	return sp, nil
}

// Resolve 解析配置值：带 enc: 前缀的值会被解密，其余原样返回
func Resolve(sp SecretProvider, value string) (string, error) {
	if !strings.HasPrefix(value, EncryptedPrefix) {
		return value, nil
	}
	if _, ok := sp.(*NoOpSecretProvider); ok {
		return "", fmt.Errorf("encrypted value found but no secret key is configured")
	}
	plain, err := sp.Decrypt(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %w", err)
	}
	return plain, nil
}

// Seal 加密并加上 enc: 前缀
func Seal(sp SecretProvider, plaintext string) (string, error) {
	ciphertext, err := sp.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	return EncryptedPrefix + ciphertext, nil
}

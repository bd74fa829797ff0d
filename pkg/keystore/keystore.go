package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"golang.org/x/crypto/scrypt"

	"payout-core/pkg/safe_random"
)

// EncryptedKeyJSON 参考 Ethereum Keystore V3 的结构风格。
// 存储的是应用钱包的密钥材料 (seed 或助记词)，而不是某条链专有的私钥格式，
// 这样换链/换 SDK 不需要迁移 keystore。
type EncryptedKeyJSON struct {
	Crypto  CryptoJSON `json:"crypto"`
	Id      string     `json:"id"`      // UUID
	Version int        `json:"version"` // 3
}

type CryptoJSON struct {
	Cipher       string       `json:"cipher"` // "aes-256-gcm"
	CipherText   string       `json:"ciphertext"`
	CipherParams CipherParams `json:"cipherparams"`
	KDF          string       `json:"kdf"` // "scrypt"
	KDFParams    KDFParams    `json:"kdfparams"`
	MAC          string       `json:"mac"`
}

type CipherParams struct {
	IV string `json:"iv"`
}

type KDFParams struct {
	DKLen int    `json:"dklen"`
	N     int    `json:"n"`
	R     int    `json:"r"`
	P     int    `json:"p"`
	Salt  string `json:"salt"`
}

const (
	scryptN     = 262144
	scryptR     = 8
	scryptP     = 1
	scryptDKLen = 32
)

var ErrMACMismatch = errors.New("keystore MAC mismatch: wrong password or corrupted file")

// EncryptSecret 将钱包密钥使用密码加密为 Keystore JSON 结构
func EncryptSecret(secret, password string) (*EncryptedKeyJSON, error) {
	// 1. 生成随机 Salt
	salt, err := safe_random.GenerateRandomBytes(32)
	if err != nil {
		return nil, err
	}

	// 2. 使用 Scrypt 派生密钥
	derivedKey, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptDKLen)
	if err != nil {
		return nil, err
	}

	// 3. 使用 AES-256-GCM 加密
	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce, err := safe_random.GenerateRandomBytes(gcm.NonceSize())
	if err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(secret), nil)

	// 4. 计算 MAC: SHA256(derivedKey + ciphertext)
	mac := sha256.Sum256(append(derivedKey, ciphertext...))

	return &EncryptedKeyJSON{
		Version: 3,
		Id:      uuid.NewString(),
		Crypto: CryptoJSON{
			Cipher:     "aes-256-gcm",
			CipherText: hex.EncodeToString(ciphertext),
			CipherParams: CipherParams{
				IV: hex.EncodeToString(nonce),
			},
			KDF: "scrypt",
			KDFParams: KDFParams{
				DKLen: scryptDKLen,
				N:     scryptN,
				R:     scryptR,
				P:     scryptP,
				Salt:  hex.EncodeToString(salt),
			},
			MAC: hex.EncodeToString(mac[:]),
		},
	}, nil
}

// DecryptSecret 用密码解出钱包密钥
func DecryptSecret(ks *EncryptedKeyJSON, password string) (string, error) {
	if ks.Crypto.KDF != "scrypt" {
		return "", fmt.Errorf("unsupported kdf: %s", ks.Crypto.KDF)
	}
	if ks.Crypto.Cipher != "aes-256-gcm" {
		return "", fmt.Errorf("unsupported cipher: %s", ks.Crypto.Cipher)
	}

	salt, err := hex.DecodeString(ks.Crypto.KDFParams.Salt)
	if err != nil {
		return "", fmt.Errorf("bad salt: %w", err)
	}
	ciphertext, err := hex.DecodeString(ks.Crypto.CipherText)
	if err != nil {
		return "", fmt.Errorf("bad ciphertext: %w", err)
	}
	nonce, err := hex.DecodeString(ks.Crypto.CipherParams.IV)
	if err != nil {
		return "", fmt.Errorf("bad iv: %w", err)
	}

	p := ks.Crypto.KDFParams
	derivedKey, err := scrypt.Key([]byte(password), salt, p.N, p.R, p.P, p.DKLen)
	if err != nil {
		return "", err
	}

	// 先校验 MAC，再解密
	mac := sha256.Sum256(append(derivedKey, ciphertext...))
	expected, err := hex.DecodeString(ks.Crypto.MAC)
	if err != nil {
		return "", fmt.Errorf("bad mac: %w", err)
	}
	if subtle.ConstantTimeCompare(mac[:], expected) != 1 {
		return "", ErrMACMismatch
	}

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrMACMismatch
	}

	return string(plaintext), nil
}

// SaveToFile 将 Keystore 写入文件 (0600)
func SaveToFile(ks *EncryptedKeyJSON, path string) error {
	data, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadFromFile 从文件读取 Keystore
func LoadFromFile(path string) (*EncryptedKeyJSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ks EncryptedKeyJSON
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, fmt.Errorf("bad keystore file: %w", err)
	}
	return &ks, nil
}

// LoadSecret 读取并解密 Keystore 文件中的钱包密钥
func LoadSecret(path, password string) (string, error) {
	ks, err := LoadFromFile(path)
	if err != nil {
		return "", err
	}
	return DecryptSecret(ks, password)
}

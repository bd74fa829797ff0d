package wallet

import (
	"errors"
	"strings"

	"github.com/stellar/go/tools/stellar-hd-wallet/crypto/derivation"
	"github.com/stellar/go/keypair"
	"github.com/tyler-smith/go-bip39"
)

// PiDerivationPath Pi 钱包的 SLIP-0010 派生路径 (coin type 314159)
const PiDerivationPath = "m/44'/314159'/0'"

var (
	ErrInvalidMnemonic = errors.New("invalid BIP-39 mnemonic")
	ErrEmptySecret     = errors.New("wallet secret is empty")
)

// FromSecret 从配置的钱包密钥加载签名密钥对。
// 支持两种格式:
//  1. Stellar 风格的 "S..." seed (Pi 链使用相同的密钥编码)
//  2. BIP-39 助记词 (Pi 官方钱包导出的 24 词)
func FromSecret(secret string) (*keypair.Full, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrEmptySecret
	}

	if strings.HasPrefix(secret, "S") && !strings.Contains(secret, " ") {
		return keypair.ParseFull(secret)
	}

	return FromMnemonic(secret, "")
}

// FromMnemonic 助记词 -> seed -> m/44'/314159'/0' 派生出 ed25519 密钥对
func FromMnemonic(mnemonic, passphrase string) (*keypair.Full, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	seed := bip39.NewSeed(mnemonic, passphrase)

	key, err := derivation.DeriveForPath(PiDerivationPath, seed)
	if err != nil {
		return nil, err
	}

	return keypair.FromRawSeed(key.RawSeed())
}

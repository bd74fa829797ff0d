package wallet

import (
	"strings"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/assert"
)

// 固定的 12 词测试助记词 (BIP-39 标准词表，校验和合法)
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestFromMnemonicDeterministic(t *testing.T) {
	kp1, err := FromMnemonic(testMnemonic, "")
	if err != nil {
		t.Fatalf("派生密钥失败: %v", err)
	}

	kp2, err := FromMnemonic(testMnemonic, "")
	if err != nil {
		t.Fatalf("派生密钥失败: %v", err)
	}

	// 同一助记词必须派生出同一地址
	assert.Equal(t, kp1.Address(), kp2.Address())
	assert.True(t, strings.HasPrefix(kp1.Address(), "G"))
}

func TestFromMnemonicPassphraseChangesKey(t *testing.T) {
	kp1, err := FromMnemonic(testMnemonic, "")
	assert.NoError(t, err)

	kp2, err := FromMnemonic(testMnemonic, "trezor")
	assert.NoError(t, err)

	assert.NotEqual(t, kp1.Address(), kp2.Address())
}

func TestFromSecretSeed(t *testing.T) {
	random, err := keypair.Random()
	if err != nil {
		t.Fatalf("生成测试密钥失败: %v", err)
	}

	kp, err := FromSecret(random.Seed())
	assert.NoError(t, err)
	assert.Equal(t, random.Address(), kp.Address())
}

func TestFromSecretInvalid(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{"Empty", "  "},
		{"Bad mnemonic", "hello world this is not a mnemonic"},
		{"Bad seed", "SINVALIDSEEDXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromSecret(tt.secret)
			assert.Error(t, err)
		})
	}
}

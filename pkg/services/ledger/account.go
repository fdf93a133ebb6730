package ledger

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Account is the signing identity shared by every commit for the life of the
// process. The key is never exposed; String renders the address only.
type Account struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewAccount(hexKey string) (*Account, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("private key is empty")
	}

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		// the underlying error may echo key material
		return nil, fmt.Errorf("private key is not a valid secp256k1 hex key")
	}

	return &Account{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func (a *Account) Address() common.Address {
	return a.address
}

func (a *Account) String() string {
	return a.address.Hex()
}

func (a *Account) sign(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), a.key)
}

package ledger

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	recordMethod = "recordReport"
	lookupMethod = "getReportHash"
)

//go:embed contract_abi.json
var defaultABI []byte

// LoadContractABI parses the ABI file at path, or the embedded report ledger
// ABI when path is empty. Both contract methods must be present.
func LoadContractABI(path string) (abi.ABI, error) {
	raw := defaultABI
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return abi.ABI{}, fmt.Errorf("read contract abi %s: %w", path, err)
		}
		raw = data
	}

	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse contract abi: %w", err)
	}
	for _, name := range []string{recordMethod, lookupMethod} {
		if _, ok := parsed.Methods[name]; !ok {
			return abi.ABI{}, fmt.Errorf("contract abi has no %s method", name)
		}
	}
	return parsed, nil
}

package ledger

import "strings"

const buildBearRPCHost = "rpc.buildbear.io/"

// Explorer builds block explorer links for transactions.
type Explorer struct {
	baseURL string
}

// NewExplorer uses explorerURL when set, otherwise derives the explorer of a
// BuildBear sandbox from its RPC URL. An empty base yields empty links.
func NewExplorer(explorerURL, rpcURL string) Explorer {
	base := strings.TrimRight(strings.TrimSpace(explorerURL), "/")
	if base == "" {
		if i := strings.Index(rpcURL, buildBearRPCHost); i >= 0 {
			sandbox := strings.Trim(rpcURL[i+len(buildBearRPCHost):], "/")
			if sandbox != "" {
				base = "https://explorer.buildbear.io/" + sandbox
			}
		}
	}
	return Explorer{baseURL: base}
}

func (e Explorer) BaseURL() string {
	return e.baseURL
}

func (e Explorer) TxURL(txID string) string {
	if e.baseURL == "" || txID == "" {
		return ""
	}
	return e.baseURL + "/tx/" + NormalizeTxID(txID)
}

// NormalizeTxID ensures the canonical 0x prefix.
func NormalizeTxID(txID string) string {
	if txID == "" || strings.HasPrefix(txID, "0x") {
		return txID
	}
	if strings.HasPrefix(txID, "0X") {
		return "0x" + txID[2:]
	}
	return "0x" + txID
}

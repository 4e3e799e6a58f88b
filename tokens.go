package flipit

import "github.com/ethereum/go-ethereum/common"

// SupportedTokens maps a display symbol to the ERC-20 address accepted by the
// game contract on Base mainnet.
var SupportedTokens = map[string]common.Address{
	"STABLEAI": common.HexToAddress("0x07F41412697D14981e770b6E335051b1231A2bA8"),
	"DIG":      common.HexToAddress("0x208561379990f106E6cD59dDc14dFB1F290016aF"),
	"WEB9":     common.HexToAddress("0x09CA293757C6ce06df17B96fbcD9c5f767f4b2E1"),
	"BNKR":     common.HexToAddress("0x22aF33FE49fD1Fa80c7149773dDe5890D3c76F3b"),
	"FED":      common.HexToAddress("0x19975a01B71D4674325bd315E278710bc36D8e5f"),
	"RaTcHeT":  common.HexToAddress("0x1d35741c51fb615ca70e28d3321f6f01e8d8a12d"),
	"GIRTH":    common.HexToAddress("0xa97d71a5fdf906034d9d121ed389665427917ee4"),
}

// TokenSymbolFor returns the registry symbol for addr, or "" when the token is
// not in the supported set.
func TokenSymbolFor(addr common.Address) string {
	for sym, a := range SupportedTokens {
		if a == addr {
			return sym
		}
	}
	return ""
}

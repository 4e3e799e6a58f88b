package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Hand-declared ABI covering the slice of the FlipIt contract this client
// touches. Kept in one place so every read decodes into named records here
// and nothing downstream indexes tuples by position.
const flipABIJSON = `[
  {"type":"function","name":"flip","stateMutability":"nonpayable","inputs":[
    {"name":"face","type":"bool"},
    {"name":"tokenAddress","type":"address"},
    {"name":"tokenAmount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"createGame","stateMutability":"nonpayable","inputs":[
    {"name":"betAmount","type":"uint256"},
    {"name":"tokenAddress","type":"address"},
    {"name":"player1Choice","type":"bool"},
    {"name":"timeoutDuration","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"joinGame","stateMutability":"nonpayable","inputs":[
    {"name":"gameId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"resolveGame","stateMutability":"nonpayable","inputs":[
    {"name":"gameId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"cancelGame","stateMutability":"nonpayable","inputs":[
    {"name":"gameId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"withdrawReward","stateMutability":"nonpayable","inputs":[
    {"name":"gameId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"depositERC20","stateMutability":"nonpayable","inputs":[
    {"name":"tokenAddress","type":"address"},
    {"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"games","stateMutability":"view","inputs":[
    {"name":"gameId","type":"uint256"}],"outputs":[
    {"name":"player1","type":"address"},
    {"name":"player2","type":"address"},
    {"name":"betAmount","type":"uint256"},
    {"name":"tokenAddress","type":"address"},
    {"name":"player1Choice","type":"bool"},
    {"name":"isCompleted","type":"bool"},
    {"name":"createdAt","type":"uint256"},
    {"name":"timeoutDuration","type":"uint256"}]},
  {"type":"function","name":"getFullGameDetails","stateMutability":"view","inputs":[
    {"name":"gameId","type":"uint256"}],"outputs":[
    {"name":"player1","type":"address"},
    {"name":"player2","type":"address"},
    {"name":"betAmount","type":"uint256"},
    {"name":"tokenAddress","type":"address"},
    {"name":"state","type":"uint8"},
    {"name":"winner","type":"address"},
    {"name":"winAmount","type":"uint256"},
    {"name":"createdAt","type":"uint256"},
    {"name":"timeoutDuration","type":"uint256"}]},
  {"type":"function","name":"gameIdCounter","stateMutability":"view","inputs":[],"outputs":[
    {"name":"","type":"uint256"}]},
  {"type":"function","name":"getBetStatus","stateMutability":"view","inputs":[
    {"name":"requestId","type":"uint256"}],"outputs":[
    {"name":"fulfilled","type":"bool"},
    {"name":"won","type":"bool"},
    {"name":"rolledFace","type":"bool"},
    {"name":"payout","type":"uint256"}]},
  {"type":"function","name":"getGameOutcome","stateMutability":"view","inputs":[
    {"name":"requestId","type":"uint256"}],"outputs":[
    {"name":"won","type":"bool"},
    {"name":"rolledFace","type":"bool"},
    {"name":"payout","type":"uint256"}]},
  {"type":"function","name":"hasPlayerWithdrawn","stateMutability":"view","inputs":[
    {"name":"gameId","type":"uint256"},
    {"name":"player","type":"address"}],"outputs":[
    {"name":"","type":"bool"}]},
  {"type":"event","name":"BetSent","inputs":[
    {"name":"requestId","type":"uint256","indexed":true},
    {"name":"player","type":"address","indexed":true},
    {"name":"tokenAddress","type":"address","indexed":false},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"face","type":"bool","indexed":false}]},
  {"type":"event","name":"BetResult","inputs":[
    {"name":"requestId","type":"uint256","indexed":true},
    {"name":"won","type":"bool","indexed":false},
    {"name":"rolledFace","type":"bool","indexed":false},
    {"name":"payout","type":"uint256","indexed":false}]}
]`

const erc20ABIJSON = `[
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[
    {"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[
    {"name":"","type":"string"}]},
  {"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[
    {"name":"","type":"string"}]},
  {"type":"function","name":"allowance","stateMutability":"view","inputs":[
    {"name":"owner","type":"address"},
    {"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[
    {"name":"spender","type":"address"},
    {"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// FlipABI is the parsed game contract ABI. Exported so tests can pack logs.
var FlipABI = mustABI(flipABIJSON)

// ERC20ABI is the parsed minimal token ABI.
var ERC20ABI = mustABI(erc20ABIJSON)

func mustABI(src string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		panic(err)
	}
	return a
}

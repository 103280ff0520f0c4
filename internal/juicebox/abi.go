// Package juicebox binds the Juicebox v4 contract suite: ABI definitions,
// fixed-point datatypes, typed reads over eth_call and write encoders.
package juicebox

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed abi/*.json
var abiFS embed.FS

var (
	ProjectsABI         = mustLoadABI("projects")
	DirectoryABI        = mustLoadABI("directory")
	ControllerABI       = mustLoadABI("controller")
	TerminalABI         = mustLoadABI("terminal")
	TerminalStoreABI    = mustLoadABI("terminal_store")
	FundAccessLimitsABI = mustLoadABI("fund_access_limits")
	SplitsABI           = mustLoadABI("splits")
	TokensABI           = mustLoadABI("tokens")
	ERC20ABI            = mustLoadABI("erc20")
)

func mustLoadABI(name string) abi.ABI {
	raw, err := abiFS.ReadFile("abi/" + name + ".json")
	if err != nil {
		panic(fmt.Sprintf("juicebox: read %s abi: %v", name, err))
	}
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("juicebox: parse %s abi: %v", name, err))
	}
	return parsed
}

package solana

import (
	"strings"
)

type Environment string

const (
	EnvironmentDev   Environment = "https://api.devnet.solana.com"
	EnvironmentTest  Environment = "https://api.testnet.solana.com"
	EnvironmentProd  Environment = "https://api.mainnet-beta.solana.com"
	EnvironmentLocal Environment = "http://127.0.0.1:8899"
)

// EndpointFor resolves a cluster moniker (devnet, testnet, mainnet-beta,
// localnet) to its public RPC endpoint. Anything else is assumed to already
// be an endpoint URL.
func EndpointFor(cluster string) string {
	switch strings.ToLower(strings.TrimSpace(cluster)) {
	case "devnet", "dev":
		return string(EnvironmentDev)
	case "testnet", "test":
		return string(EnvironmentTest)
	case "mainnet", "mainnet-beta", "prod":
		return string(EnvironmentProd)
	case "localnet", "local", "localhost":
		return string(EnvironmentLocal)
	}
	return cluster
}

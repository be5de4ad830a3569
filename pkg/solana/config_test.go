package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpointFor(t *testing.T) {
	for input, expected := range map[string]string{
		"devnet":                 string(EnvironmentDev),
		" Testnet ":              string(EnvironmentTest),
		"mainnet-beta":           string(EnvironmentProd),
		"localhost":              string(EnvironmentLocal),
		"https://rpc.example.io": "https://rpc.example.io",
	} {
		assert.Equal(t, expected, EndpointFor(input), input)
	}
}

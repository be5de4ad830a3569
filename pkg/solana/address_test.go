package solana

import (
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Key names carry the typo from the upstream SDK tests the vectors came from.
const (
	seedPubkey    = "SeedPubey1111111111111111111111111111111111"
	loaderProgram = "BPFLoader1111111111111111111111111111111111"
)

func TestCreateProgramAddress_Vectors(t *testing.T) {
	base := mustKey(t, seedPubkey)
	program := mustKey(t, loaderProgram)

	for _, tc := range []struct {
		seeds    [][]byte
		expected string
	}{
		{[][]byte{{}, {1}}, "3gF2KMe9KiC6FNVBmfg9i267aMPvK37FewCip4eGBFcT"},
		{[][]byte{[]byte("☉")}, "7ytmC1nT1xY4RfxCV2ZgyA7UakC93do5ZdyhdF3EtPj7"},
		{[][]byte{[]byte("Talking"), []byte("Squirrels")}, "HwRVBufQ4haG5XSgpspwKtNd3PC9GM9m1196uJW36vds"},
		{[][]byte{base}, "GUs5qLUfsEHkcMB9T38vjr18ypEhRuNWiePW2LoK4E3K"},
	} {
		actual, err := CreateProgramAddress(program, tc.seeds...)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, base58.Encode(actual))
	}

	single, err := CreateProgramAddress(program, []byte("Talking"))
	require.NoError(t, err)
	pair, err := CreateProgramAddress(program, []byte("Talking"), []byte("Squirrels"))
	require.NoError(t, err)
	assert.NotEqual(t, single, pair)
}

func TestCreateProgramAddress_SeedLimits(t *testing.T) {
	program := mustKey(t, loaderProgram)

	_, err := CreateProgramAddress(program, make([]byte, maxSeedLength))
	assert.NoError(t, err)

	_, err = CreateProgramAddress(program, make([]byte, maxSeedLength+1))
	assert.Equal(t, ErrMaxSeedLengthExceeded, err)

	_, err = CreateProgramAddress(program, []byte("ok"), make([]byte, maxSeedLength+1))
	assert.Equal(t, ErrMaxSeedLengthExceeded, err)

	_, err = CreateProgramAddress(program, make([][]byte, maxSeeds+1)...)
	assert.Equal(t, ErrTooManySeeds, err)
}

func TestCreateProgramAddress_OnCurve(t *testing.T) {
	withCurve(t, func([]byte) bool { return true })

	_, err := CreateProgramAddress(mustKey(t, loaderProgram), []byte("mov_swap"))
	assert.Equal(t, ErrInvalidPublicKey, err)
}

func TestCreateWithSeed(t *testing.T) {
	base := mustKey(t, seedPubkey)
	program := mustKey(t, loaderProgram)

	for _, tc := range []struct {
		seed     string
		program  ed25519.PublicKey
		expected string
	}{
		{"limber chicken: 4/45", make([]byte, ed25519.PublicKeySize), "9nEWv1ddYqRP1bnwnfuCQqCf7CjLSCKmecbD7cYxMuhK"},
		{"", program, "6UbBRnkRM9C1Maj7cXQEFTwGFChhuFZneRitQq2u9AuB"},
		{"swapStoreAccount", program, "GyuJEj7EvvDDskyHARzJvrbFowGDEbZMC5G3hTf5SxNt"},
		{strings.Repeat("x", maxSeedLength), program, "3CJj7j7BWmPqCYKF34nYuMcqG9n2y6WWupxEZ1RGZKBc"},
	} {
		actual, err := CreateWithSeed(base, tc.seed, tc.program)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, base58.Encode(actual))

		again, err := CreateWithSeed(base, tc.seed, tc.program)
		require.NoError(t, err)
		assert.EqualValues(t, actual, again)
	}

	// Seeded addresses are plain hashes and may land on the curve.
	withCurve(t, func([]byte) bool { return true })
	_, err := CreateWithSeed(base, "swapStoreAccount", program)
	assert.NoError(t, err)
}

func TestCreateWithSeed_Invalid(t *testing.T) {
	base := mustKey(t, seedPubkey)
	program := mustKey(t, loaderProgram)

	_, err := CreateWithSeed(base, strings.Repeat("x", maxSeedLength+1), program)
	assert.Equal(t, ErrMaxSeedLengthExceeded, err)

	_, err = CreateWithSeed(base[:31], "seed", program)
	assert.Equal(t, ErrInvalidPublicKey, err)

	_, err = CreateWithSeed(base, "seed", nil)
	assert.Equal(t, ErrInvalidPublicKey, err)
}

func TestFindProgramAddressAndBump(t *testing.T) {
	for _, tc := range []struct {
		program  string
		expected string
		bump     uint8
	}{
		{loaderProgram, "JmEkahC1M6bwRyFVDsExm36ziujQdk2aKTueA3uR4KL", 254},
		{"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA", "9XrL3yZdPTS471EHGcpt683SqfZ229y4vm6xt3wgaN57", 251},
		{"ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL", "ANs1H3KkBbfiy66XijvtLcriGyZnhmPZnBx3aQWyaZQM", 255},
		{"11111111111111111111111111111111", "EHvTMHf3dGVNPTZ8fBHiE5BwsqtkEN8MsmFo6BsPtp62", 254},
	} {
		program := mustKey(t, tc.program)

		actual, bump, err := FindProgramAddressAndBump(program, []byte("mov_swap"))
		require.NoError(t, err)
		assert.Equal(t, tc.expected, base58.Encode(actual))
		assert.Equal(t, tc.bump, bump)

		direct, err := CreateProgramAddress(program, []byte("mov_swap"), []byte{bump})
		require.NoError(t, err)
		assert.EqualValues(t, actual, direct)
	}

	// The upstream SDK's first "Lil'"/"Bits" reference.
	actual, err := FindProgramAddress(mustKey(t, "4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM"), []byte("Lil'"), []byte("Bits"))
	require.NoError(t, err)
	assert.Equal(t, "Bn9pAWUXWc5Kd849xTkQcHqiCbHUEizLFn4r5Cf8XYnd", base58.Encode(actual))
}

func TestFindProgramAddressAndBump_RandomPrograms(t *testing.T) {
	seeds := make([][]byte, 0, 4)
	seeds = append(seeds, []byte("mov_swap"))

	for i := 0; i < 500; i++ {
		program, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)

		_, _, err = FindProgramAddressAndBump(program, seeds...)
		require.NoError(t, err)
	}

	// The bump is never written into the caller's spare capacity.
	assert.Nil(t, seeds[:2][1])
}

func TestFindProgramAddressAndBump_Errors(t *testing.T) {
	program := mustKey(t, loaderProgram)

	_, _, err := FindProgramAddressAndBump(program[:16], []byte("mov_swap"))
	assert.Equal(t, ErrInvalidPublicKey, err)

	_, _, err = FindProgramAddressAndBump(program, make([]byte, maxSeedLength+1))
	assert.Equal(t, ErrMaxSeedLengthExceeded, err)

	var attempts int
	withCurve(t, func([]byte) bool {
		attempts++
		return true
	})

	_, _, err = FindProgramAddressAndBump(program, []byte("mov_swap"))
	assert.Equal(t, ErrDerivationExhausted, err)
	assert.Equal(t, bumpAttempts, attempts)
}

func withCurve(t *testing.T, fn func([]byte) bool) {
	original := isOnCurve
	isOnCurve = fn
	t.Cleanup(func() {
		isOnCurve = original
	})
}

func mustKey(t *testing.T, s string) ed25519.PublicKey {
	b, err := base58.Decode(s)
	require.NoError(t, err)
	require.Len(t, b, ed25519.PublicKeySize)
	return b
}

package address

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProgram = MustFromBase58("DbEmYfDwjsW2ge6pF4BVc91W1XHVbs1Lk7hQ3JEc1hvP")

func key(n byte) Address {
	var a Address
	a[0] = n
	a[31] = n
	return a
}

func TestBase58_RoundTrip(t *testing.T) {
	a := key(7)
	got, err := FromBase58(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, got)

	assert.Equal(t, "DbEmYfDwjsW2ge6pF4BVc91W1XHVbs1Lk7hQ3JEc1hvP", testProgram.String())
}

func TestFromBase58_Invalid(t *testing.T) {
	_, err := FromBase58("0OIl")
	assert.Error(t, err)

	_, err = FromBase58("3mJr7AoUXx2Wqd")
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestFindProgramAddress_Deterministic(t *testing.T) {
	seeds := [][]byte{key(1).Bytes(), []byte("Proposal Test")}

	a1, b1, err := FindProgramAddress(seeds, testProgram)
	require.NoError(t, err)
	a2, b2, err := FindProgramAddress(seeds, testProgram)
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
	assert.False(t, IsOnCurve(a1[:]), "derived address must be off-curve")
}

func TestFindProgramAddress_BumpReproduces(t *testing.T) {
	seeds := [][]byte{[]byte("voter"), key(2).Bytes(), key(3).Bytes()}
	addr, bump, err := FindProgramAddress(seeds, testProgram)
	require.NoError(t, err)

	again, err := CreateProgramAddress(append(seeds, []byte{bump}), testProgram)
	require.NoError(t, err)
	assert.Equal(t, addr, again)
}

func TestFindProgramAddress_SeedOrderMatters(t *testing.T) {
	dao, user := key(4).Bytes(), key(5).Bytes()
	a, _, err := FindProgramAddress([][]byte{dao, user}, testProgram)
	require.NoError(t, err)
	b, _, err := FindProgramAddress([][]byte{user, dao}, testProgram)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestFindProgramAddress_ProgramScoped(t *testing.T) {
	seeds := [][]byte{key(4).Bytes(), key(5).Bytes()}
	a, _, err := FindProgramAddress(seeds, testProgram)
	require.NoError(t, err)
	b, _, err := FindProgramAddress(seeds, key(9))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestFindProgramAddress_DistinctKeys(t *testing.T) {
	seen := make(map[Address]string)
	dao := key(1).Bytes()
	for _, title := range []string{"a", "b", "ab", "ba", "Proposal Test", "Proposal Test "} {
		addr, _, err := FindProgramAddress([][]byte{dao, []byte(title)}, testProgram)
		require.NoError(t, err)
		if prev, ok := seen[addr]; ok {
			t.Fatalf("collision between %q and %q", prev, title)
		}
		seen[addr] = title
	}
}

func TestFindProgramAddress_SeedTooLong(t *testing.T) {
	long := []byte(strings.Repeat("x", MaxSeedLen+1))
	_, _, err := FindProgramAddress([][]byte{key(1).Bytes(), long}, testProgram)
	assert.ErrorIs(t, err, ErrMaxSeedLengthExceeded)

	exact := []byte(strings.Repeat("x", MaxSeedLen))
	_, _, err = FindProgramAddress([][]byte{key(1).Bytes(), exact}, testProgram)
	assert.NoError(t, err)
}

func TestFindProgramAddress_TooManySeeds(t *testing.T) {
	seeds := make([][]byte, MaxSeeds)
	for i := range seeds {
		seeds[i] = []byte{byte(i)}
	}
	_, _, err := FindProgramAddress(seeds, testProgram)
	assert.ErrorIs(t, err, ErrMaxSeedLengthExceeded)

	_, err = CreateProgramAddress(append(seeds, []byte{0}), testProgram)
	assert.ErrorIs(t, err, ErrMaxSeedLengthExceeded)
}

func TestIsOnCurve(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	assert.True(t, IsOnCurve(pub), "ed25519 public keys are curve points")
	assert.False(t, IsOnCurve(pub[:31]))
}

func TestBytes_IsCopy(t *testing.T) {
	a := key(8)
	b := a.Bytes()
	b[0] = 0xFF
	assert.False(t, bytes.Equal(a[:], b))
	assert.True(t, Zero.IsZero())
	assert.False(t, a.IsZero())
	assert.Equal(t, -1, key(1).Compare(key(2)))
}

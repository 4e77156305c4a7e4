package feed

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestSyncEventTopicMatchesUint112Signature(t *testing.T) {
	expected := crypto.Keccak256Hash([]byte("Sync(uint112,uint112)"))
	require.Equal(t, expected, SyncEventTopic)
}

func TestDecodeSyncUnpacksReserves(t *testing.T) {
	decoder := NewDecoder()

	entry := &LogEntry{
		Address: "0x1234567890123456789012345678901234567890",
		Topics:  []string{SyncEventTopic.Hex()},
		Data: "0x" +
			"0000000000000000000000000000000000000000000000000de0b6b3a7640000" +
			"0000000000000000000000000000000000000000000000001bc16d674ec80000",
	}

	sync, err := decoder.DecodeSync(entry)
	require.NoError(t, err)
	require.NotNil(t, sync)
	require.Equal(t, big.NewInt(1000000000000000000), sync.Reserve0)
	require.Equal(t, big.NewInt(2000000000000000000), sync.Reserve1)
	require.Equal(t, "0x1234567890123456789012345678901234567890", sync.PoolAddress)
}

func TestDecodeSyncRejectsWrongTopic(t *testing.T) {
	decoder := NewDecoder()
	entry := &LogEntry{
		Topics: []string{crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)")).Hex()},
		Data:   "0x",
	}

	_, err := decoder.DecodeSync(entry)
	require.Error(t, err)
}

func TestDecodeSyncRejectsMissingTopics(t *testing.T) {
	decoder := NewDecoder()
	_, err := decoder.DecodeSync(&LogEntry{})
	require.Error(t, err)
}

func TestRateComputesOutOverIn(t *testing.T) {
	sync := &ReserveSync{
		PoolAddress: "0xpool",
		Reserve0:    big.NewInt(100),
		Reserve1:    big.NewInt(200),
	}

	rate, err := Rate(sync, true)
	require.NoError(t, err)
	require.InDelta(t, 2.0, rate, 1e-9)

	rate, err = Rate(sync, false)
	require.NoError(t, err)
	require.InDelta(t, 0.5, rate, 1e-9)
}

func TestRateRejectsNonPositiveReserves(t *testing.T) {
	sync := &ReserveSync{
		PoolAddress: "0xpool",
		Reserve0:    big.NewInt(0),
		Reserve1:    big.NewInt(200),
	}

	_, err := Rate(sync, true)
	require.Error(t, err)
}

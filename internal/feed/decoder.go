package feed

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SyncEventTopic is the keccak256 hash of the Sync(uint112,uint112) event
// signature emitted by AMM pools whenever their reserves change.
var SyncEventTopic = crypto.Keccak256Hash([]byte("Sync(uint112,uint112)"))

// LogEntry mirrors the JSON shape of an eth_subscribe("logs", ...) notification.
type LogEntry struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

// ReserveSync is a decoded pair of pool reserves.
type ReserveSync struct {
	PoolAddress string
	Reserve0    *big.Int
	Reserve1    *big.Int
}

// Decoder unpacks Sync events from raw log entries.
type Decoder struct {
	syncABI abi.Arguments
}

// NewDecoder builds a decoder for the Sync(uint112,uint112) event.
func NewDecoder() *Decoder {
	uint112Type, _ := abi.NewType("uint112", "", nil)
	return &Decoder{
		syncABI: abi.Arguments{
			{Type: uint112Type, Name: "reserve0"},
			{Type: uint112Type, Name: "reserve1"},
		},
	}
}

// DecodeSync decodes a Sync event from a log entry.
func (d *Decoder) DecodeSync(entry *LogEntry) (*ReserveSync, error) {
	if len(entry.Topics) < 1 {
		return nil, fmt.Errorf("feed: no topics in log")
	}

	topic := common.HexToHash(entry.Topics[0])
	if topic != SyncEventTopic {
		return nil, fmt.Errorf("feed: not a Sync event: %s", entry.Topics[0])
	}

	data := common.FromHex(entry.Data)
	if len(data) < 64 {
		return nil, fmt.Errorf("feed: data too short: %d bytes", len(data))
	}

	values, err := d.syncABI.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("feed: unpacking sync data: %w", err)
	}

	reserve0, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("feed: invalid reserve0 type")
	}
	reserve1, ok := values[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("feed: invalid reserve1 type")
	}

	return &ReserveSync{
		PoolAddress: strings.ToLower(entry.Address),
		Reserve0:    reserve0,
		Reserve1:    reserve1,
	}, nil
}

// Rate computes the edge rate implied by a reserve pair for a pool mapped
// with the given direction. reserveOutIsReserve1 selects which side of the
// pair is the "out" leg of the edge this pool backs.
func Rate(sync *ReserveSync, reserveOutIsReserve1 bool) (float64, error) {
	if sync.Reserve0.Sign() <= 0 || sync.Reserve1.Sign() <= 0 {
		return 0, fmt.Errorf("feed: non-positive reserve for pool %s", sync.PoolAddress)
	}

	in, out := sync.Reserve0, sync.Reserve1
	if !reserveOutIsReserve1 {
		in, out = sync.Reserve1, sync.Reserve0
	}

	inF, _ := new(big.Float).SetInt(in).Float64()
	outF, _ := new(big.Float).SetInt(out).Float64()
	if inF <= 0 {
		return 0, fmt.Errorf("feed: zero-valued reserve for pool %s", sync.PoolAddress)
	}

	return outF / inF, nil
}

package canonical

import (
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"
)

func TestBytesSortsKeys(t *testing.T) {
	got, err := Bytes(map[string]any{"b": 2, "a": 1, "x": map[string]any{"z": 10, "y": 5}})
	require.NoError(t, err)
	require.Equal(t, `{"a":1,"b":2,"x":{"y":5,"z":10}}`, string(got))
}

func TestHash64IgnoresStructFieldOrder(t *testing.T) {
	type ab struct {
		A string `json:"a"`
		B int    `json:"b"`
	}
	type ba struct {
		B int    `json:"b"`
		A string `json:"a"`
	}
	h1, err := Hash64(ab{A: "x", B: 1})
	require.NoError(t, err)
	h2, err := Hash64(ba{B: 1, A: "x"})
	require.NoError(t, err)
	require.Equal(t, h1, h2)
	require.Equal(t, xxhash.Sum64String(`{"a":"x","b":1}`), h1)
}

func TestDigestIsBigEndian(t *testing.T) {
	require.Equal(t, "0000000000000001", Digest(1))
	require.Equal(t, "0102030405060708", Digest(0x0102030405060708))
}

func TestIDIsDeterministic(t *testing.T) {
	in := map[string]any{"correlation_id": "c-1", "turn_id": 7}
	id1, err := ID("turn", in)
	require.NoError(t, err)
	id2, err := ID("turn", in)
	require.NoError(t, err)
	require.Equal(t, id1, id2)
	require.Len(t, id1, len("turn-")+16)
}

func TestBytesRejectsUnmarshalable(t *testing.T) {
	_, err := Bytes(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
}

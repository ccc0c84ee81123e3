package wire

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connPair(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	ca, err := NewConn(a)
	require.NoError(t, err)
	cb, err := NewConn(b)
	require.NoError(t, err)
	return ca, cb
}

func TestWriteReadMessage_RoundTrip(t *testing.T) {
	ca, cb := connPair(t)
	type payload struct {
		Name string
		N    int
	}
	go func() {
		_ = ca.WriteMessage(payload{Name: "ping", N: 7})
	}()

	var got payload
	require.NoError(t, cb.ReadMessage(&got))
	assert.Equal(t, "ping", got.Name)
	assert.Equal(t, 7, got.N)
}

func TestWriteReadMessage_CompressesLargePayloads(t *testing.T) {
	ca, cb := connPair(t)
	big := strings.Repeat("x", compressThreshold*2)

	go func() {
		_ = ca.WriteMessage(big)
	}()

	var got string
	require.NoError(t, cb.ReadMessage(&got))
	assert.Equal(t, big, got)
}

func TestHandshake_SucceedsOnMatchingMajorVersion(t *testing.T) {
	ca, cb := connPair(t)

	errc := make(chan error, 1)
	go func() { errc <- ca.Handshake(false) }()

	require.NoError(t, cb.Handshake(true))
	require.NoError(t, <-errc)
}

func TestCheckCompatible_RejectsDifferentMajor(t *testing.T) {
	err := checkCompatible("2.0.0")
	require.Error(t, err)
}

func TestCheckCompatible_AcceptsDifferentMinorAndPatch(t *testing.T) {
	require.NoError(t, checkCompatible("1.4.9"))
}

// Package wire implements the spec §6 wire frame: length-prefixed
// JSON over TCP with a 32-bit max frame length. One fabric, shared by
// the Engine RPC surface (gateway -> match engine) and the Store RPC
// surface (match engine -> persistence service), mirroring the
// original rustex-micro architecture where both were independent
// tarpc services on their own ports (see SPEC_FULL.md DOMAIN STACK).
package wire

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/klauspost/compress/zstd"
)

// MaxFrameLength is the hard ceiling on a single frame's payload, per
// spec §6.
const MaxFrameLength = 1<<32 - 1

// compressThreshold is the payload size above which a frame is zstd
// compressed. Small frames (most requests) aren't worth the codec
// overhead; bulk frames (book recovery, get_user_orders fan-out)
// often are.
const compressThreshold = 4096

// ProtocolVersion is exchanged during the handshake so a client and
// server built from incompatible revisions fail fast instead of
// desyncing frame boundaries.
var ProtocolVersion = semver.MustParse("1.0.0")

const (
	flagPlain      byte = 0
	flagCompressed byte = 1
)

// Conn wraps a net.Conn-like stream with the framing protocol.
// Concurrent WriteMessage calls are safe (serialized by writeMu), and
// one ReadMessage may run alongside them; concurrent ReadMessage calls
// are not safe.
type Conn struct {
	r       *bufio.Reader
	w       io.Writer
	writeMu sync.Mutex

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewConn constructs a framed connection over an arbitrary
// io.ReadWriter (typically a net.Conn).
func NewConn(rw io.ReadWriter) (*Conn, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("wire: init encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("wire: init decoder: %w", err)
	}
	return &Conn{
		r:   bufio.NewReader(rw),
		w:   rw,
		enc: enc,
		dec: dec,
	}, nil
}

// WriteMessage marshals v as JSON and writes it as one length-prefixed
// frame: [4-byte big-endian length][1-byte flag][payload].
func (c *Conn) WriteMessage(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wire: marshal: %w", err)
	}

	flag := flagPlain
	if len(payload) > compressThreshold {
		payload = c.enc.EncodeAll(payload, nil)
		flag = flagCompressed
	}

	if uint64(len(payload)+1) > MaxFrameLength {
		return fmt.Errorf("wire: frame of %d bytes exceeds max frame length", len(payload))
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)+1))
	if _, err := c.w.Write(header[:]); err != nil {
		return fmt.Errorf("wire: write header: %w", err)
	}
	if _, err := c.w.Write([]byte{flag}); err != nil {
		return fmt.Errorf("wire: write flag: %w", err)
	}
	if _, err := c.w.Write(payload); err != nil {
		return fmt.Errorf("wire: write payload: %w", err)
	}
	return nil
}

// ReadMessage blocks until one frame has arrived and unmarshals its
// payload into v.
func (c *Conn) ReadMessage(v any) error {
	var header [4]byte
	if _, err := io.ReadFull(c.r, header[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(header[:])
	if uint64(n) > MaxFrameLength {
		return fmt.Errorf("wire: frame of %d bytes exceeds max frame length", n)
	}
	if n == 0 {
		return fmt.Errorf("wire: empty frame")
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return fmt.Errorf("wire: read payload: %w", err)
	}

	flag, payload := buf[0], buf[1:]
	if flag == flagCompressed {
		decoded, err := c.dec.DecodeAll(payload, nil)
		if err != nil {
			return fmt.Errorf("wire: decompress: %w", err)
		}
		payload = decoded
	}

	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("wire: unmarshal: %w", err)
	}
	return nil
}

// Handshake exchanges ProtocolVersion with the peer and fails if the
// major versions differ.
func (c *Conn) Handshake(isServer bool) error {
	if isServer {
		var peer string
		if err := c.ReadMessage(&peer); err != nil {
			return fmt.Errorf("wire: handshake read: %w", err)
		}
		if err := checkCompatible(peer); err != nil {
			return err
		}
		return c.WriteMessage(ProtocolVersion.String())
	}
	if err := c.WriteMessage(ProtocolVersion.String()); err != nil {
		return fmt.Errorf("wire: handshake write: %w", err)
	}
	var peer string
	if err := c.ReadMessage(&peer); err != nil {
		return fmt.Errorf("wire: handshake read: %w", err)
	}
	return checkCompatible(peer)
}

func checkCompatible(peerVersion string) error {
	peer, err := semver.NewVersion(peerVersion)
	if err != nil {
		return fmt.Errorf("wire: invalid peer protocol version %q: %w", peerVersion, err)
	}
	if peer.Major() != ProtocolVersion.Major() {
		return fmt.Errorf("wire: incompatible protocol version: local %s, peer %s", ProtocolVersion, peer)
	}
	return nil
}

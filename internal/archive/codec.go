// Package archive encodes workspace snapshots into a compact binary container
// and moves them through a blob store.
//
// Layout (little endian):
//
//	[magic "IDFS"][version u8][compression u8][uncompressed u32][payload len u32][payload]
//
// The payload is the JSON snapshot, compressed with the recorded codec.
package archive

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"idfcore/pkg/domain"
)

// Compression identifies the payload codec.
type Compression uint8

const (
	// CompressionNone stores the JSON payload as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZstd uses zstd (better ratio).
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// ParseCompression maps a configuration string to a codec.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	}
	return CompressionNone, fmt.Errorf("unknown compression %q", s)
}

const (
	// Version is the container format version written by Encode.
	Version    = 1
	headerSize = 14
	// MaxPayload bounds both the stored and the decompressed payload.
	MaxPayload = 1 << 30
)

var magic = [4]byte{'I', 'D', 'F', 'S'}

var (
	// ErrBadMagic is returned when the input is not an archive.
	ErrBadMagic = errors.New("archive: bad magic")
	// ErrVersion is returned for a container version this build cannot read.
	ErrVersion = errors.New("archive: unsupported version")
	// ErrCorrupt is returned when lengths or payload do not check out.
	ErrCorrupt = errors.New("archive: corrupt payload")
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxPayload))
	return dec
}

// Encode writes snapshot to w. When the codec does not bring the payload
// under 90% of its raw size the payload is stored uncompressed.
func Encode(w io.Writer, snapshot domain.Snapshot, c Compression) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if len(raw) > MaxPayload {
		return fmt.Errorf("snapshot of %d bytes: %w", len(raw), ErrCorrupt)
	}
	payload, used, err := compress(raw, c)
	if err != nil {
		return err
	}
	var hdr [headerSize]byte
	copy(hdr[:4], magic[:])
	hdr[4] = Version
	hdr[5] = byte(used)
	binary.LittleEndian.PutUint32(hdr[6:], uint32(len(raw)))
	binary.LittleEndian.PutUint32(hdr[10:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// Marshal is Encode into a fresh buffer.
func Marshal(snapshot domain.Snapshot, c Compression) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, snapshot, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Header describes an encoded archive without its payload.
type Header struct {
	Version      uint8
	Compression  Compression
	Uncompressed uint32
	PayloadLen   uint32
}

// Decode reads one archive from r.
func Decode(r io.Reader) (domain.Snapshot, Header, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return domain.Snapshot{}, Header{}, ErrBadMagic
		}
		return domain.Snapshot{}, Header{}, err
	}
	if !bytes.Equal(hdr[:4], magic[:]) {
		return domain.Snapshot{}, Header{}, ErrBadMagic
	}
	h := Header{
		Version:      hdr[4],
		Compression:  Compression(hdr[5]),
		Uncompressed: binary.LittleEndian.Uint32(hdr[6:]),
		PayloadLen:   binary.LittleEndian.Uint32(hdr[10:]),
	}
	if h.Version != Version {
		return domain.Snapshot{}, h, fmt.Errorf("%w %d", ErrVersion, h.Version)
	}
	if h.Uncompressed > MaxPayload || h.PayloadLen > MaxPayload {
		return domain.Snapshot{}, h, ErrCorrupt
	}
	if !plausible(h) {
		return domain.Snapshot{}, h, ErrCorrupt
	}
	// Reading through a limit grows the buffer with the bytes actually
	// present instead of trusting the header.
	payload, err := io.ReadAll(io.LimitReader(r, int64(h.PayloadLen)))
	if err != nil {
		return domain.Snapshot{}, h, fmt.Errorf("read payload: %w", err)
	}
	if uint32(len(payload)) != h.PayloadLen {
		return domain.Snapshot{}, h, fmt.Errorf("read payload: %d of %d bytes: %w", len(payload), h.PayloadLen, ErrCorrupt)
	}
	raw, err := decompress(payload, h)
	if err != nil {
		return domain.Snapshot{}, h, err
	}
	var snapshot domain.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return domain.Snapshot{}, h, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, h, nil
}

func compress(raw []byte, c Compression) ([]byte, Compression, error) {
	var out []byte
	switch c {
	case CompressionNone:
		return raw, CompressionNone, nil
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, dst, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("lz4: %w", err)
		}
		out = dst[:n]
	case CompressionZstd:
		enc := getZstdEncoder()
		out = enc.EncodeAll(raw, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, 0, fmt.Errorf("unknown compression %d", c)
	}
	// An incompressible LZ4 block reports n == 0.
	if len(out) == 0 || float64(len(out)) > float64(len(raw))*0.9 {
		return raw, CompressionNone, nil
	}
	return out, c, nil
}

// lz4MaxRatio bounds how far one LZ4 block byte can expand.
const lz4MaxRatio = 255

// plausible reports whether the recorded lengths can belong together.
func plausible(h Header) bool {
	switch h.Compression {
	case CompressionNone:
		return h.PayloadLen == h.Uncompressed
	case CompressionLZ4:
		return uint64(h.Uncompressed) <= uint64(h.PayloadLen)*lz4MaxRatio+16
	}
	return true
}

func decompress(payload []byte, h Header) ([]byte, error) {
	switch h.Compression {
	case CompressionNone:
		if uint32(len(payload)) != h.Uncompressed {
			return nil, ErrCorrupt
		}
		return payload, nil
	case CompressionLZ4:
		out := make([]byte, h.Uncompressed)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil || uint32(n) != h.Uncompressed {
			return nil, fmt.Errorf("lz4: %w", ErrCorrupt)
		}
		return out, nil
	case CompressionZstd:
		dec := getZstdDecoder()
		if err := dec.Reset(bytes.NewReader(payload)); err != nil {
			zstdDecoderPool.Put(dec)
			return nil, fmt.Errorf("zstd: %w", ErrCorrupt)
		}
		// One byte past the recorded size tells an overlong frame apart.
		out, err := io.ReadAll(io.LimitReader(dec, int64(h.Uncompressed)+1))
		zstdDecoderPool.Put(dec)
		if err != nil || len(out) != int(h.Uncompressed) {
			return nil, fmt.Errorf("zstd: %w", ErrCorrupt)
		}
		return out, nil
	}
	return nil, fmt.Errorf("compression %d: %w", h.Compression, ErrCorrupt)
}

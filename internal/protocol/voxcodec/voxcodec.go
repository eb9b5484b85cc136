// Package voxcodec decodes the voxel window carried by OBS messages.
//
// A window is the cube of side 2r+1 around a center, stored in the world's
// canonical scan order: dy outer, dz middle, dx inner.
package voxcodec

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"voxelfarm.ai/internal/protocol"
)

// EncodeRLE encodes palette ids into base64(varint pairs) of (block_id, run_len).
func EncodeRLE(ids []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	for i := 0; i < len(ids); {
		b := ids[i]
		run := 1
		for j := i + 1; j < len(ids) && ids[j] == b; j++ {
			run++
		}
		n := binary.PutUvarint(tmp[:], uint64(b))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])
		i += run
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeRLE is the inverse of EncodeRLE. limit bounds the decoded length so a
// corrupt run cannot allocate without bound; limit <= 0 disables the check.
func DecodeRLE(b64 string, limit int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []uint16
	for i := 0; i < len(raw); {
		b, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if b > 0xFFFF {
			return nil, fmt.Errorf("block id too large: %d", b)
		}
		if limit > 0 && uint64(len(out))+run > uint64(limit) {
			return nil, fmt.Errorf("rle overflows window: have=%d run=%d limit=%d", len(out), run, limit)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(b))
		}
	}
	return out, nil
}

// Window is a decoded voxel cube.
type Window struct {
	Center [3]int
	Radius int
	Blocks []uint16
}

func Side(radius int) int { return 2*radius + 1 }

func Volume(radius int) int {
	d := Side(radius)
	return d * d * d
}

// Index returns the offset of (dx,dy,dz) relative to the center, or -1 when
// outside the window.
func (w *Window) Index(dx, dy, dz int) int {
	r := w.Radius
	if dx < -r || dx > r || dy < -r || dy > r || dz < -r || dz > r {
		return -1
	}
	d := Side(r)
	return (dy+r)*d*d + (dz+r)*d + (dx + r)
}

// At returns the palette id at an absolute position.
func (w *Window) At(x, y, z int) (uint16, bool) {
	if w == nil || len(w.Blocks) == 0 {
		return 0, false
	}
	i := w.Index(x-w.Center[0], y-w.Center[1], z-w.Center[2])
	if i < 0 || i >= len(w.Blocks) {
		return 0, false
	}
	return w.Blocks[i], true
}

// Decode builds the current window from an OBS voxel payload. prev is the
// window from the previous observation and is required for DELTA payloads.
func Decode(v protocol.VoxelsObs, prev *Window) (*Window, error) {
	switch v.Encoding {
	case protocol.EncodingRLE, "":
		blocks, err := DecodeRLE(v.Data, Volume(v.Radius))
		if err != nil {
			return nil, fmt.Errorf("voxels: %w", err)
		}
		if len(blocks) != Volume(v.Radius) {
			return nil, fmt.Errorf("voxels: got %d blocks want %d for radius %d", len(blocks), Volume(v.Radius), v.Radius)
		}
		return &Window{Center: v.Center, Radius: v.Radius, Blocks: blocks}, nil
	case protocol.EncodingDelta:
		if prev == nil || prev.Radius != v.Radius || len(prev.Blocks) != Volume(v.Radius) {
			return nil, fmt.Errorf("voxels: delta without matching base window")
		}
		next := &Window{Center: v.Center, Radius: v.Radius, Blocks: append([]uint16(nil), prev.Blocks...)}
		for _, op := range v.Ops {
			i := next.Index(op.D[0], op.D[1], op.D[2])
			if i < 0 {
				return nil, fmt.Errorf("voxels: delta op out of window: %v", op.D)
			}
			next.Blocks[i] = op.B
		}
		return next, nil
	default:
		return nil, fmt.Errorf("voxels: unsupported encoding %q", v.Encoding)
	}
}

// BuildDeltaOps compares two windows of equal radius in scan order.
func BuildDeltaOps(prev, curr []uint16, radius int) []protocol.VoxelDeltaOp {
	if len(prev) != len(curr) || len(curr) == 0 {
		return nil
	}
	r := radius
	var ops []protocol.VoxelDeltaOp
	i := 0
	for dy := -r; dy <= r; dy++ {
		for dz := -r; dz <= r; dz++ {
			for dx := -r; dx <= r; dx++ {
				if curr[i] != prev[i] {
					ops = append(ops, protocol.VoxelDeltaOp{D: [3]int{dx, dy, dz}, B: curr[i]})
				}
				i++
			}
		}
	}
	return ops
}

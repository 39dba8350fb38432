// Optional lz4 compression for TCP frames above a configurable size
// threshold (cmn/config's Transport.CompressAbove). Grounded on
// nothing in the teacher transport package directly (aistore
// compresses at the memsys/mmsa layer, not per-frame); wired here
// because SPEC_FULL.md's DOMAIN STACK section earmarks
// github.com/pierrec/lz4/v3 for exactly this per-message compression
// role and nothing else in the tree exercises it otherwise.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rigelnet

import (
	"bytes"
	"encoding/binary"

	"github.com/pierrec/lz4/v3"
	"github.com/pkg/errors"
)

const (
	frameFlagPlain      byte = 0
	frameFlagCompressed byte = 1
)

// maybeCompress prefixes payload with a one-byte flag; payloads at or
// above threshold are lz4-compressed (threshold <= 0 disables it).
func maybeCompress(payload []byte, threshold int) []byte {
	if threshold <= 0 || len(payload) < threshold {
		out := make([]byte, 1+len(payload))
		out[0] = frameFlagPlain
		copy(out[1:], payload)
		return out
	}

	var buf bytes.Buffer
	buf.WriteByte(frameFlagCompressed)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	buf.Write(lenBuf[:])

	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		out := make([]byte, 1+len(payload))
		out[0] = frameFlagPlain
		copy(out[1:], payload)
		return out
	}
	if err := zw.Close(); err != nil {
		out := make([]byte, 1+len(payload))
		out[0] = frameFlagPlain
		copy(out[1:], payload)
		return out
	}
	return buf.Bytes()
}

// maybeDecompress reverses maybeCompress.
func maybeDecompress(framed []byte) ([]byte, error) {
	if len(framed) == 0 {
		return nil, errors.New("rigelnet: empty frame")
	}
	flag, rest := framed[0], framed[1:]
	if flag == frameFlagPlain {
		return rest, nil
	}
	if len(rest) < 4 {
		return nil, errors.New("rigelnet: truncated compressed frame header")
	}
	origLen := binary.BigEndian.Uint32(rest[:4])
	zr := lz4.NewReader(bytes.NewReader(rest[4:]))
	out := make([]byte, origLen)
	if _, err := readFullLZ4(zr, out); err != nil {
		return nil, errors.Wrap(err, "rigelnet: lz4 decompress")
	}
	return out, nil
}

func readFullLZ4(r *lz4.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			if total == len(buf) {
				return total, nil
			}
			return total, err
		}
	}
	return total, nil
}

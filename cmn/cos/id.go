// Package cos — ID generation, grounded on cmn/cos.GenUUID/GenBEID:
// node IDs and session IDs are minted the same way the teacher mints
// daemon IDs, via shortid over a fixed alphabet with the seed given
// to InitIDGen.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"fmt"

	"github.com/OneOfOne/xxhash"
	"github.com/teris-io/shortid"
)

const nodeIDABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var sid *shortid.Shortid

// InitIDGen seeds the ID generator. Call once at process startup.
func InitIDGen(seed uint64) {
	sid = shortid.MustNew(1, nodeIDABC, seed)
}

func init() {
	InitIDGen(1)
}

// GenNodeID mints a short, URL-safe, globally-unique-enough node ID,
// used to identify a Server or Client endpoint in logs and events.
func GenNodeID() string { return sid.MustGenerate() }

// GenSessionID mints a per-connector session identifier.
func GenSessionID() string { return sid.MustGenerate() }

// Checksum64 hashes an arbitrary byte blob (recipient sets, oversized
// PDUs) with xxhash, the teacher's checksum of choice throughout cmn/cos.
func Checksum64(b []byte) uint64 { return xxhash.Checksum64(b) }

// IsAlphaNice reports whether s is a well-formed identifier: letters,
// digits, dashes and underscores only, starting and ending alpha-numeric.
func IsAlphaNice(s string) bool {
	l := len(s)
	if l == 0 || l > 64 {
		return false
	}
	for i := 0; i < l; i++ {
		c := s[i]
		alnum := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if alnum {
			continue
		}
		if c != '-' && c != '_' {
			return false
		}
		if i == 0 || i == l-1 {
			return false
		}
	}
	return true
}

func FmtID(kind string, n uint64) string { return fmt.Sprintf("%s-%016x", kind, n) }

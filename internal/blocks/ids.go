// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package blocks

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/pdiddy/grounding-engine/pkg/types"
)

// idSep separates hashed components so that ("ab","c") and ("a","bc") differ.
const idSep = "\x1f"

func shortHash(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte(idSep))
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// BlockID returns the stable id of the chunkIndex-th chunk of the node at
// anchor. Unchunked blocks use chunk index 0.
func BlockID(documentID string, typ types.BlockType, anchor string, chunkIndex int) string {
	return "b_" + shortHash(documentID, string(typ), anchor, strconv.Itoa(chunkIndex))
}

// SectionID returns the stable id of the section at path. The root section
// has an empty path.
func SectionID(documentID string, path []string) string {
	parts := append([]string{documentID, "section"}, path...)
	return "s_" + shortHash(parts...)
}

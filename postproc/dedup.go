package postproc

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/jordy-ruiz/pathfinder/absint"
)

// Fingerprint hashes a path's normalized edge/marker sequence with
// Keccak256, so that paths equal after normalization share one key.
func Fingerprint(path absint.Path) common.Hash {
	items := path.Normalize().Items()
	buf := make([]byte, 0, len(items)*9)
	var scratch [8]byte
	for _, fi := range items {
		buf = append(buf, byte(fi.Kind))
		binary.LittleEndian.PutUint32(scratch[:4], uint32(fi.Edge))
		binary.LittleEndian.PutUint32(scratch[4:8], uint32(fi.Blk))
		buf = append(buf, scratch[:8]...)
	}
	return crypto.Keccak256Hash(buf)
}

// Dedup filters paths, keeping only the first path seen for each distinct
// fingerprint and reporting how many paths were dropped as duplicates of
// an earlier one.
func Dedup(paths []absint.Path) (kept []absint.Path, droppedCount int) {
	seen := make(map[common.Hash]bool, len(paths))
	kept = make([]absint.Path, 0, len(paths))
	for _, p := range paths {
		fp := Fingerprint(p)
		if seen[fp] {
			droppedCount++
			continue
		}
		seen[fp] = true
		kept = append(kept, p)
	}
	return kept, droppedCount
}

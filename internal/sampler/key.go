package sampler

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"image"
)

// Key is a content fingerprint. Two frames are duplicates iff their keys
// compare equal, so comparison is O(1) regardless of image size.
type Key [sha256.Size]byte

// Keyer fingerprints the pass images of one frame. Images are visited in
// the order given so the key is stable for a fixed pass list.
type Keyer interface {
	Key(images []*image.NRGBA) Key
}

// ExactKeyer hashes dimensions and raw pixels; only bit-identical frames match.
type ExactKeyer struct{}

func (ExactKeyer) Key(images []*image.NRGBA) Key {
	h := sha256.New()
	for _, img := range images {
		writeImage(h, img, 0xff)
	}
	return sum(h)
}

// QuantizedKeyer drops the lowest Bits of every channel before hashing, so
// frames that differ only by render noise below that threshold merge.
// Bits is clamped to [0,7].
type QuantizedKeyer struct {
	Bits uint
}

func (q QuantizedKeyer) Key(images []*image.NRGBA) Key {
	bits := q.Bits
	if bits > 7 {
		bits = 7
	}
	mask := byte(0xff << bits)
	h := sha256.New()
	for _, img := range images {
		writeImage(h, img, mask)
	}
	return sum(h)
}

// CombineKeys folds several keys (one per camera) into one.
func CombineKeys(keys ...Key) Key {
	if len(keys) == 1 {
		return keys[0]
	}
	h := sha256.New()
	for _, k := range keys {
		h.Write(k[:])
	}
	return sum(h)
}

// uniqueKey marks a frame that must never merge with a neighbour.
func uniqueKey(stream string, frame int) Key {
	h := sha256.New()
	h.Write([]byte("render-failure\x00"))
	h.Write([]byte(stream))
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(int64(frame)))
	h.Write(b[:])
	return sum(h)
}

func writeImage(h hash.Hash, img *image.NRGBA, mask byte) {
	var hdr [9]byte
	if img == nil {
		h.Write(hdr[:])
		return
	}
	hdr[0] = 1
	b := img.Bounds()
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(b.Dx()))
	binary.LittleEndian.PutUint32(hdr[5:9], uint32(b.Dy()))
	h.Write(hdr[:])

	row := make([]byte, b.Dx()*4)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		copy(row, img.Pix[off:off+len(row)])
		if mask != 0xff {
			for i := range row {
				row[i] &= mask
			}
		}
		h.Write(row)
	}
}

func sum(h hash.Hash) Key {
	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

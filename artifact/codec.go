package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical encoding so equal images hash equally.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("artifact: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Hash identifies an image by the sha256 of its canonical encoding.
type Hash [32]byte

// String returns the hash in hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first 12 hex digits of the hash.
func (h Hash) Short() string {
	return h.String()[:12]
}

// Marshal serializes an Image to canonical CBOR bytes.
func Marshal(img *Image) ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// Unmarshal deserializes an Image from CBOR bytes.
func Unmarshal(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("artifact: unmarshal image: %w", err)
	}
	if img.Version != FormatVersion {
		return nil, fmt.Errorf("artifact: image version %d, want %d", img.Version, FormatVersion)
	}
	return &img, nil
}

// Encode marshals img and returns the bytes with their hash.
func Encode(img *Image) ([]byte, Hash, error) {
	data, err := Marshal(img)
	if err != nil {
		return nil, Hash{}, err
	}
	return data, sha256.Sum256(data), nil
}

// Verify checks that data hashes to want.
func Verify(data []byte, want Hash) error {
	if got := Hash(sha256.Sum256(data)); got != want {
		return fmt.Errorf("artifact: hash mismatch: declared %s, computed %s", want, got)
	}
	return nil
}

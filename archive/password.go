package archive

import (
	"crypto/sha256"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// Policy is the per-node encryption-key derivation policy (§6.3).
type Policy int

const (
	// PolicyPassword passes the raw password through unchanged. No
	// password means no encryption.
	PolicyPassword Policy = iota
	// PolicySalted derives a per-node key from hash(password, uuid).
	PolicySalted
	// PolicyForced behaves like PolicySalted, but falls back to a
	// build-time default password, and failing that to hash(uuid),
	// so a node is always encrypted regardless of caller input.
	PolicyForced
)

// pickle derives the password passed to a node's codec, per §4.F
// "Password discipline". buildDefault is the build-time default used
// by PolicyForced when no password is supplied.
func pickle(password string, id uuid.UUID, policy Policy, buildDefault string) string {
	switch policy {
	case PolicySalted:
		return saltedHash(password, id)
	case PolicyForced:
		if password == "" {
			password = buildDefault
		}
		return saltedHash(password, id)
	default: // PolicyPassword
		return password
	}
}

func saltedHash(password string, id uuid.UUID) string {
	h := sha256.New()
	h.Write([]byte(password))
	h.Write(id[:])
	return string(h.Sum(nil))
}

// deriveKey expands pickled, a per-node or per-container password
// (possibly empty), into a 32-byte AEAD key using HKDF-SHA256 salted
// by salt (indexKey passes the nil UUID's bytes).
func deriveKey(pickled string, salt []byte) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(pickled), salt, []byte("volcore/archive"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

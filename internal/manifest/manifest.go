// Package manifest stamps filtered log artifacts with an audit sidecar.
// The artifact itself stays a pass-through of retained raw lines, so the
// provenance record lives next to it as <artifact>.manifest.json.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
)

// Suffix is appended to an artifact path to name its manifest.
const Suffix = ".manifest.json"

// Manifest verification errors.
var (
	ErrNoManifest   = errors.New("no manifest for artifact")
	ErrHashMismatch = errors.New("artifact hash mismatch")
)

// Manifest records how a filtered log artifact was produced.
type Manifest struct {
	RunID     string    `json:"runId"`
	CreatedAt time.Time `json:"createdAt"`
	Sources   []string  `json:"sources"`
	Lines     int       `json:"lines"`
	Kept      int       `json:"kept"`
	Dropped   int       `json:"dropped"`
	Malformed int       `json:"malformed"`
	SHA256    string    `json:"sha256"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// PathFor returns the sidecar path of an artifact.
func PathFor(artifact string) string {
	return artifact + Suffix
}

// Sum computes the SHA-256 digest of the artifact content.
func Sum(artifact string) (string, error) {
	f, err := os.Open(artifact)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash artifact: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Stamp computes the artifact digest, fills the hash, run ID, and
// timestamp when unset, and writes the sidecar.
func Stamp(artifact string, m *Manifest) error {
	sum, err := Sum(artifact)
	if err != nil {
		return err
	}

	m.SHA256 = sum

	if m.RunID == "" {
		m.RunID = NewRunID()
	}

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	return Write(artifact, *m)
}

// Write saves the manifest sidecar for the artifact.
func Write(artifact string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(PathFor(artifact), append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// Read loads the manifest sidecar of the artifact.
func Read(artifact string) (Manifest, error) {
	data, err := os.ReadFile(PathFor(artifact))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, fmt.Errorf("%w: %s", ErrNoManifest, artifact)
		}

		return Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest: %w", err)
	}

	return m, nil
}

// Verify recomputes the artifact digest and checks it against the
// sidecar, returning the manifest on success.
func Verify(artifact string) (Manifest, error) {
	m, err := Read(artifact)
	if err != nil {
		return Manifest{}, err
	}

	sum, err := Sum(artifact)
	if err != nil {
		return Manifest{}, err
	}

	if sum != m.SHA256 {
		return Manifest{}, fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, m.SHA256, sum)
	}

	return m, nil
}

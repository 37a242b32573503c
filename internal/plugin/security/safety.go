package security

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// SignatureSuffix is appended to a module path to locate its detached
// signature.
const SignatureSuffix = ".sig"

// suspiciousNames is a coarse first-pass filter on file names.
var suspiciousNames = []string{
	"keylogger",
	"backdoor",
	"rootkit",
	"trojan",
	"inject",
	"hook_all",
}

// ValidatePluginSafety runs the load-time gate on the module at path: it
// must exist, be a regular file within the size ceiling, not carry a
// blacklisted name and, when signatures are required, carry a valid
// detached signature from a trusted signer.
func (r *Registry) ValidatePluginSafety(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat plugin %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("plugin %s is not a regular file", path)
	}
	if info.Size() > r.config.MaxFileSize {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrFileTooLarge, path, info.Size(), r.config.MaxFileSize)
	}

	base := strings.ToLower(filepath.Base(path))
	for _, bad := range suspiciousNames {
		if strings.Contains(base, bad) {
			return fmt.Errorf("%w: %s", ErrSuspiciousName, filepath.Base(path))
		}
	}

	if r.config.RequireSignature {
		if err := r.verifySignature(path); err != nil {
			return err
		}
	}

	r.log.WithFields(logrus.Fields{"path": path, "size": info.Size()}).Debug("plugin passed safety checks")
	return nil
}

// verifySignature checks <path>.sig, a base64 ed25519 signature over the
// SHA-256 digest of the module, against the trusted signers.
func (r *Registry) verifySignature(path string) error {
	raw, err := os.ReadFile(path + SignatureSuffix)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrMissingSignature, path)
	}
	if err != nil {
		return fmt.Errorf("read signature: %w", err)
	}
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: malformed signature for %s", ErrInvalidSignature, path)
	}

	digest, err := fileDigest(path)
	if err != nil {
		return err
	}
	for _, key := range r.config.TrustedSigners {
		if ed25519.Verify(key, digest, sig) {
			return nil
		}
	}
	return fmt.Errorf("%w: no trusted signer for %s", ErrInvalidSignature, path)
}

func fileDigest(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plugin: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("hash plugin: %w", err)
	}
	return h.Sum(nil), nil
}

// SignFile produces the contents of a detached signature for the module at
// path.
func SignFile(path string, key ed25519.PrivateKey) (string, error) {
	digest, err := fileDigest(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(key, digest)), nil
}

// ParsePublicKey decodes a base64 ed25519 public key.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode signer key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("signer key has %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

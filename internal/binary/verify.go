package binary

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// VerifyOptions pins what a downloaded archive must match. A zero value
// disables verification.
type VerifyOptions struct {
	// SHA256 is the expected hex digest of the archive.
	SHA256 string
	// SignatureURL points at a detached OpenPGP signature for the archive.
	SignatureURL string
	// KeyringPath is a local public keyring, armored or binary.
	KeyringPath string
}

// Enabled reports whether any check is configured.
func (o VerifyOptions) Enabled() bool {
	return o.SHA256 != "" || o.SignatureURL != ""
}

// Verifier checks archives against VerifyOptions.
type Verifier struct {
	opts       VerifyOptions
	downloader *Downloader
}

// NewVerifier creates a verifier. The downloader fetches signatures.
func NewVerifier(opts VerifyOptions, downloader *Downloader) *Verifier {
	return &Verifier{opts: opts, downloader: downloader}
}

// Verify runs every configured check against archivePath and returns the
// strongest method that passed. Failures wrap ErrVerification.
func (v *Verifier) Verify(ctx context.Context, archivePath string) (VerificationMethod, error) {
	method := VerificationNone

	if v.opts.SHA256 != "" {
		if err := VerifySHA256(archivePath, v.opts.SHA256); err != nil {
			return VerificationNone, err
		}
		method = VerificationSHA256
	}

	if v.opts.SignatureURL != "" {
		if err := v.verifySignature(ctx, archivePath); err != nil {
			return VerificationNone, err
		}
		method = VerificationGPG
	}

	return method, nil
}

func (v *Verifier) verifySignature(ctx context.Context, archivePath string) error {
	if v.opts.KeyringPath == "" {
		return fmt.Errorf("%w: signature_url set without keyring", ErrVerification)
	}

	keyringData, err := os.ReadFile(v.opts.KeyringPath)
	if err != nil {
		return fmt.Errorf("%w: read keyring: %w", ErrVerification, err)
	}

	sigPath := archivePath + ".sig"
	defer os.Remove(sigPath)
	if _, err := v.downloader.DownloadToFile(ctx, v.opts.SignatureURL, sigPath, nil); err != nil {
		return fmt.Errorf("%w: fetch signature: %w", ErrVerification, err)
	}

	sig, err := os.ReadFile(sigPath)
	if err != nil {
		return fmt.Errorf("%w: read signature: %w", ErrVerification, err)
	}

	return VerifySignature(archivePath, sig, keyringData)
}

// VerifySignature checks a detached signature over the file at path. Both
// the signature and the keyring may be armored or binary.
func VerifySignature(path string, signature, keyringData []byte) error {
	keyring, err := readKeyring(keyringData)
	if err != nil {
		return fmt.Errorf("%w: parse keyring: %w", ErrVerification, err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open file: %w", ErrVerification, err)
	}
	defer file.Close()

	_, err = openpgp.CheckArmoredDetachedSignature(keyring, file, bytes.NewReader(signature), nil)
	if err != nil {
		// Try non-armored signature
		if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("%w: rewind file: %w", ErrVerification, seekErr)
		}
		_, err = openpgp.CheckDetachedSignature(keyring, file, bytes.NewReader(signature), nil)
	}
	if err != nil {
		return fmt.Errorf("%w: verify signature: %w", ErrVerification, err)
	}
	return nil
}

func readKeyring(data []byte) (openpgp.EntityList, error) {
	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err == nil {
		return keyring, nil
	}
	return openpgp.ReadKeyRing(bytes.NewReader(data))
}

// VerifySHA256 compares the file digest against expected (hex, any case).
func VerifySHA256(path, expected string) error {
	actual, err := calculateSHA256(path)
	if err != nil {
		return fmt.Errorf("%w: calculate checksum: %w", ErrVerification, err)
	}

	if !strings.EqualFold(actual, strings.TrimSpace(expected)) {
		return fmt.Errorf("%w: checksum mismatch: expected %s, got %s", ErrVerification, expected, actual)
	}
	return nil
}

// calculateSHA256 calculates the SHA256 checksum of a file
func calculateSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

package gatepass

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
)

var (
	ErrMalformed     = errors.New("malformed payload")
	ErrInvalidUserID = errors.New("invalid user id")
)

// Digest computes HMAC-SHA256(secret, decimal(step)). The message is the base-10 step with no
// padding or separators; changing that encoding is an incompatible protocol change.
func Digest(secret []byte, step int64) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(step, 10)))
	return mac.Sum(nil)
}

// EncodePayload builds base64std(userID + ":" + hex(digest)).
func EncodePayload(userID string, digest []byte) (string, error) {
	if err := ValidateUserID(userID); err != nil {
		return "", err
	}
	if len(digest) != sha256.Size {
		return "", errors.Errorf("digest must be %d bytes, got %d", sha256.Size, len(digest))
	}

	var b strings.Builder
	b.Grow(len(userID) + 1 + DigestHexLen)
	b.WriteString(userID)
	b.WriteByte(Separator)
	b.WriteString(hex.EncodeToString(digest))
	return base64.StdEncoding.EncodeToString([]byte(b.String())), nil
}

// DecodePayload splits a scanned payload into the claimed user id and digest. Every failure wraps
// ErrMalformed; the function never panics on arbitrary input.
func DecodePayload(payload string) (string, []byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", nil, errors.Wrap(ErrMalformed, "empty")
	}
	if len(payload) > MaxPayloadLen {
		return "", nil, errors.Wrapf(ErrMalformed, "length %d exceeds %d", len(payload), MaxPayloadLen)
	}

	raw, err := base64.StdEncoding.Strict().DecodeString(payload)
	if err != nil {
		return "", nil, errors.Wrap(ErrMalformed, "base64")
	}
	if len(raw) < 1+1+DigestHexLen {
		return "", nil, errors.Wrapf(ErrMalformed, "decoded length %d too short", len(raw))
	}

	sepAt := len(raw) - DigestHexLen - 1
	if raw[sepAt] != Separator {
		return "", nil, errors.Wrap(ErrMalformed, "missing separator")
	}

	digestHex := string(raw[sepAt+1:])
	digest, err := hex.DecodeString(digestHex)
	if err != nil || hex.EncodeToString(digest) != digestHex {
		return "", nil, errors.Wrap(ErrMalformed, "digest is not lowercase hex")
	}

	userID := string(raw[:sepAt])
	if err := ValidateUserID(userID); err != nil {
		return "", nil, errors.Wrap(ErrMalformed, err.Error())
	}
	return userID, digest, nil
}

// ValidateUserID enforces the user id alphabet: 1..MaxUserIDLen bytes of UTF-8 without control
// characters.
func ValidateUserID(userID string) error {
	switch {
	case userID == "":
		return errors.Wrap(ErrInvalidUserID, "empty")
	case len(userID) > MaxUserIDLen:
		return errors.Wrap(ErrInvalidUserID, fmt.Sprintf("longer than %d bytes", MaxUserIDLen))
	case !utf8.ValidString(userID):
		return errors.Wrap(ErrInvalidUserID, "not utf-8")
	case strings.IndexFunc(userID, unicode.IsControl) >= 0:
		return errors.Wrap(ErrInvalidUserID, "control character")
	}
	return nil
}

package interaction

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"

	"github.com/totegamma/poapbot/internal/domain"
)

const (
	HeaderSignature = "X-Signature-Ed25519"
	HeaderTimestamp = "X-Signature-Timestamp"
)

// Verifier checks the platform's ed25519 request signatures.
type Verifier struct {
	key ed25519.PublicKey
}

// NewVerifier accepts a hex encoded public key. An empty key yields a
// verifier that rejects every request.
func NewVerifier(hexKey string) (*Verifier, error) {
	if hexKey == "" {
		return &Verifier{}, nil
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.Wrap(err, "invalid public key")
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid public key length %d", len(raw))
	}
	return &Verifier{key: ed25519.PublicKey(raw)}, nil
}

func (v *Verifier) Verify(signature, timestamp string, body []byte) error {
	if len(v.key) == 0 {
		return domain.AuthenticationError{Reason: "public key not configured"}
	}
	if signature == "" || timestamp == "" {
		return domain.AuthenticationError{Reason: "missing signature headers"}
	}
	sig, err := hex.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return domain.AuthenticationError{Reason: "malformed signature"}
	}

	req := &http.Request{
		Header: http.Header{},
		Body:   io.NopCloser(bytes.NewReader(body)),
	}
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderTimestamp, timestamp)
	if !discordgo.VerifyInteraction(req, v.key) {
		return domain.AuthenticationError{Reason: "signature mismatch"}
	}
	return nil
}

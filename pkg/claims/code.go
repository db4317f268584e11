package claims

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	CodePrefix    = "AGT-"
	codeHexLength = 12
	nonceSize     = 8
)

// CodeGenerator derives claim codes from an HMAC over the wallet address, the
// issue time and a random nonce. The inputs are not kept: a code is only an
// unguessable key into the claim store.
type CodeGenerator struct {
	secret []byte
	rand   io.Reader
}

func NewCodeGenerator(secret []byte, rand io.Reader) *CodeGenerator {
	return &CodeGenerator{secret: secret, rand: rand}
}

func (g *CodeGenerator) Generate(address string, now time.Time) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(g.rand, nonce); err != nil {
		return "", fmt.Errorf("failed to read nonce: %w", err)
	}

	payload := fmt.Sprintf("%s:%d:%s", address, now.UnixMilli(), hex.EncodeToString(nonce))
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(payload))
	digest := hex.EncodeToString(mac.Sum(nil))

	return CodePrefix + strings.ToUpper(digest[:codeHexLength]), nil
}

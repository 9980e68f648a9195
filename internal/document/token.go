package document

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	publicTokenBytes   = 18
	downloadTokenBytes = 24
)

// TokenSource mints the opaque access tokens the lifecycle engine hands out.
type TokenSource interface {
	// PublicToken is minted once at upload; it never expires or rotates.
	PublicToken() string
	// DownloadToken is minted once, on first successful payment.
	DownloadToken() string
}

type randomTokenSource struct{}

func (randomTokenSource) PublicToken() string {
	return randomToken(publicTokenBytes)
}

func (randomTokenSource) DownloadToken() string {
	return randomToken(downloadTokenBytes)
}

func randomToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}

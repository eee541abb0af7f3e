package api

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const cursorPrefix = "after|"

// EncodeCursor serialises the id of the last returned activity to a token.
func EncodeCursor(afterID string) string {
	if afterID == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + afterID))
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token means
// the first page.
func DecodeCursor(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", err
	}
	afterID, ok := strings.CutPrefix(string(decoded), cursorPrefix)
	if !ok || afterID == "" {
		return "", fmt.Errorf("invalid cursor format")
	}
	return afterID, nil
}

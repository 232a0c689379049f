package translation

import (
	"context"
	"fmt"
	"strings"
)

// Mock tags the input with the target language instead of translating.
type Mock struct{}

func (Mock) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	return fmt.Sprintf("[%s] %s", targetLang, text), nil
}

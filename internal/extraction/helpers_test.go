package extraction

import (
	"context"
	"strconv"
	"strings"
)

func ptr(s string) *string { return &s }

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func indexOf(s, sub string) int { return strings.Index(s, sub) }

type fakeGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

package service

import (
	"strings"
	"testing"
	"time"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestFileName(t *testing.T) {
	date := domain.NewDate(2024, time.March, 9)

	assert.Equal(t, "amazon_2024-03-09_402-1234567-7654321.pdf", FileName("amazon", "402-1234567-7654321", date))
	assert.Equal(t, "amazon_402-1234567-7654321.pdf", FileName("amazon", "402-1234567-7654321", domain.DateOnly{}))

	sanitised := FileName("freebox", "a/b c?", domain.DateOnly{})
	assert.Regexp(t, `^freebox_a_b_c_-[0-9a-f]{8}\.pdf$`, sanitised)
	assert.Equal(t, sanitised, FileName("freebox", "a/b c?", domain.DateOnly{}))

	long := strings.Repeat("x", 80)
	name := FileName("amazon", long, domain.DateOnly{})
	assert.Regexp(t, `^amazon_x{31}-[0-9a-f]{8}\.pdf$`, name)
	assert.Len(t, strings.TrimSuffix(strings.TrimPrefix(name, "amazon_"), ".pdf"), maxIDLength)

	exact := strings.Repeat("y", maxIDLength)
	assert.Equal(t, "amazon_"+exact+".pdf", FileName("amazon", exact, domain.DateOnly{}))
}

func TestFileNameKeepsDistinctIDsApart(t *testing.T) {
	pairs := [][2]string{
		{"a/b", "a?b"},
		{"a/b", "a_b"},
		{strings.Repeat("z", 40) + "-1", strings.Repeat("z", 40) + "-2"},
	}
	for _, p := range pairs {
		assert.NotEqual(t, FileName("amazon", p[0], domain.DateOnly{}), FileName("amazon", p[1], domain.DateOnly{}), "%q vs %q", p[0], p[1])
	}
}

func TestContentID(t *testing.T) {
	a := ContentID([]byte("%PDF-1.4 one"))
	b := ContentID([]byte("%PDF-1.4 two"))

	assert.True(t, strings.HasPrefix(a, "sha256-"))
	assert.Len(t, a, len("sha256-")+16)
	assert.Equal(t, a, ContentID([]byte("%PDF-1.4 one")))
	assert.NotEqual(t, a, b)
}

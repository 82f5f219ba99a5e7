package refcode_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Moshfiqmoon/Championyourpicks/internal/lib/refcode"
)

func TestGenerate_ContainsUserID(t *testing.T) {
	code := refcode.Generate(3003)
	assert.True(t, strings.HasPrefix(code, "REF3003"))
	assert.Len(t, code, len("REF3003")+8)
}

func TestGenerate_UniquePerCall(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		code := refcode.Generate(42)
		_, dup := seen[code]
		assert.False(t, dup, "duplicate code %s", code)
		seen[code] = struct{}{}
	}
}

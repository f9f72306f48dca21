package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })
	Version = "v1.2.3"

	s := String()

	assert.True(t, strings.HasPrefix(s, "searchkit v1.2.3 "), s)
	assert.Contains(t, s, runtime.GOOS+"/"+runtime.GOARCH)
	assert.Equal(t, "v1.2.3", Short())
}

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.NotEmpty(t, info.Commit)
}

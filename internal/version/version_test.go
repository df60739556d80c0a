package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	assert.Equal(t, "fhirsql dev (commit: none, built: unknown) "+runtime.Version(), Info())
	assert.Equal(t, "dev", Short())
}

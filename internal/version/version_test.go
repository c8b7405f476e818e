package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion_DefaultValues(t *testing.T) {
	assert.Equal(t, "dev", Version)
	assert.Equal(t, "dev", Commit)
	assert.Equal(t, "unknown", BuildTime)
}

func TestGet(t *testing.T) {
	info := Get("safereport-api")

	assert.Equal(t, Info{Service: "safereport-api", Version: "dev", Commit: "dev", BuildTime: "unknown"}, info)
	assert.Equal(t, "safereport-api dev (commit dev, built unknown)", info.String())
}

func TestGet_LinkerOverrides(t *testing.T) {
	origVersion, origCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = origVersion, origCommit })

	Version, Commit = "v1.4.0", "abc1234"
	info := Get("adm")
	assert.Equal(t, "v1.4.0", info.Version)
	assert.Equal(t, "abc1234", info.Commit)
}

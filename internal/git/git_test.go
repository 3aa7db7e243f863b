package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractOwnerRepo_SSH(t *testing.T) {
	owner, repo, err := ExtractOwnerRepo("git@github.com:adaptiveedge/landing-page.git")
	require.NoError(t, err)
	assert.Equal(t, "adaptiveedge", owner)
	assert.Equal(t, "landing-page", repo)
}

func TestExtractOwnerRepo_HTTPS(t *testing.T) {
	owner, repo, err := ExtractOwnerRepo("https://github.com/adaptiveedge/landing-page.git")
	require.NoError(t, err)
	assert.Equal(t, "adaptiveedge", owner)
	assert.Equal(t, "landing-page", repo)
}

func TestExtractOwnerRepo_HTTPSNoSuffix(t *testing.T) {
	owner, repo, err := ExtractOwnerRepo("https://github.com/adaptiveedge/api")
	require.NoError(t, err)
	assert.Equal(t, "adaptiveedge", owner)
	assert.Equal(t, "api", repo)
}

func TestExtractOwnerRepo_Invalid(t *testing.T) {
	_, _, err := ExtractOwnerRepo("not-a-remote")
	assert.Error(t, err)

	_, _, err = ExtractOwnerRepo("git@github.com")
	assert.Error(t, err)
}

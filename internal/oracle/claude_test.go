package oracle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeCLIOutput_Envelope(t *testing.T) {
	out := `{"result":"  {\"verdict\":\"approve\"}  ","model":"claude-sonnet","usage":{"input_tokens":120,"output_tokens":40}}`
	res := decodeCLIOutput(out, "fallback-model")

	assert.Equal(t, `{"verdict":"approve"}`, res.Text)
	assert.Equal(t, "claude-sonnet", res.Model)
	assert.Equal(t, 120, res.InputTokens)
	assert.Equal(t, 40, res.OutputTokens)
}

func TestDecodeCLIOutput_EnvelopeWithoutModel(t *testing.T) {
	res := decodeCLIOutput(`{"result":"hello"}`, "haiku")
	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, "haiku", res.Model)
}

func TestDecodeCLIOutput_PlainTextFallback(t *testing.T) {
	res := decodeCLIOutput("  not json at all\n", "haiku")
	assert.Equal(t, "not json at all", res.Text)
	assert.Equal(t, "haiku", res.Model)
	assert.Zero(t, res.InputTokens)
}

func TestResolveDir(t *testing.T) {
	c := NewCLI("haiku")

	dir := t.TempDir()
	assert.Equal(t, dir, c.resolveDir(dir))

	// Missing directories degrade to a context-free invocation.
	assert.Equal(t, os.TempDir(), c.resolveDir(filepath.Join(dir, "does-not-exist")))
	assert.Equal(t, os.TempDir(), c.resolveDir(""))
}

func TestNewCLI_Defaults(t *testing.T) {
	c := NewCLI("sonnet")
	assert.Equal(t, "claude", c.Binary)
	assert.Equal(t, "sonnet", c.DefaultModel)
	assert.NotZero(t, c.DefaultTimeout)
}

package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/nacmval/internal/nacm"
)

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalSource = `<config><nacm><enable-nacm>true</enable-nacm></nacm></config>`

// ============================================================================
// LoadFile Tests
// ============================================================================

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeSource(t, dir, "nacm.xml", minimalSource)

	policy, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, policy.EnableNACM)
}

func TestLoadFile_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.xml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read source file")
}

func TestLoadFile_UnparsableFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeSource(t, dir, "broken.xml", "<config><nacm>")

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse source file")
}

// ============================================================================
// LoadFiles Tests
// ============================================================================

func TestLoadFiles_SkipsFailures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := writeSource(t, dir, "good.xml", minimalSource)
	bad := writeSource(t, dir, "bad.xml", "not xml at all")

	policies, failures := LoadFiles([]string{good, bad})

	require.Len(t, policies, 1)
	assert.True(t, policies[0].EnableNACM)

	require.Len(t, failures, 1)
	assert.Equal(t, bad, failures[0].Path)
	assert.Contains(t, failures[0].Error(), "bad.xml")
}

func TestLoadFiles_PreservesInputOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := writeSource(t, dir, "a.xml",
		`<config><nacm><read-default>permit</read-default></nacm></config>`)
	second := writeSource(t, dir, "b.xml",
		`<config><nacm><read-default>deny</read-default></nacm></config>`)

	policies, failures := LoadFiles([]string{second, first})
	require.Empty(t, failures)
	require.Len(t, policies, 2)
	assert.Equal(t, nacm.EffectDeny, policies[0].ReadDefault)
	assert.Equal(t, nacm.EffectPermit, policies[1].ReadDefault)
}

// ============================================================================
// LoadDir Tests
// ============================================================================

func TestLoadDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSource(t, dir, "20-second.xml",
		`<config><nacm><read-default>deny</read-default></nacm></config>`)
	writeSource(t, dir, "10-first.xml",
		`<config><nacm><read-default>permit</read-default></nacm></config>`)
	writeSource(t, dir, "ignored.txt", "not a source")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o750))

	policies, failures, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, failures)

	// Alphabetical filename order decides source-processing order.
	require.Len(t, policies, 2)
	assert.Equal(t, nacm.EffectPermit, policies[0].ReadDefault)
	assert.Equal(t, nacm.EffectDeny, policies[1].ReadDefault)
}

func TestLoadDir_MissingDirectory(t *testing.T) {
	t.Parallel()

	_, _, err := LoadDir(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read source directory")
}

func TestLoadDir_EmptyDirectory(t *testing.T) {
	t.Parallel()

	policies, failures, err := LoadDir(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, policies)
	assert.Empty(t, failures)
}

func TestSourceError_Unwrap(t *testing.T) {
	t.Parallel()

	inner := errors.New("boom")
	err := &SourceError{Path: "/tmp/x.xml", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "/tmp/x.xml")
}

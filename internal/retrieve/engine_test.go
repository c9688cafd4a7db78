package retrieve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRetrieveRanksByOverlap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "billing.go", "package billing\nfunc ChargeInvoice(invoice Invoice) error { return nil }")
	writeFile(t, dir, "parser.go", "package parser\nfunc Tokenize(input string) []string { return nil }")
	writeFile(t, dir, "readme.txt", "project overview and notes")

	e := NewEngine(dir, 0, 0, nil)
	hits := e.Retrieve("how does invoice charging work in billing", 2)
	require.NotEmpty(t, hits)
	require.Equal(t, "billing.go", hits[0].Path)
}

func TestRetrieveCapsResults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"a.go", "b.go", "c.go"} {
		writeFile(t, dir, name, "package shared\nfunc Handler() {}")
	}

	e := NewEngine(dir, 0, 0, nil)
	hits := e.Retrieve("shared handler", 2)
	require.Len(t, hits, 2)
}

func TestRetrieveDegradesToEmpty(t *testing.T) {
	t.Parallel()

	e := NewEngine(filepath.Join(t.TempDir(), "does-not-exist"), 0, 0, nil)
	require.Empty(t, e.Retrieve("anything", 3))

	dir := t.TempDir()
	e = NewEngine(dir, 0, 0, nil)
	require.Empty(t, e.Retrieve("", 3))
	require.Empty(t, e.Retrieve("query", 0))
}

func TestRetrieveSkipsVendoredDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, filepath.Join("node_modules", "dep.js"), "invoice invoice invoice")
	writeFile(t, dir, "app.go", "package app // invoice handling")

	e := NewEngine(dir, 0, 0, nil)
	hits := e.Retrieve("invoice", 5)
	require.Len(t, hits, 1)
	require.Equal(t, "app.go", hits[0].Path)
}

func TestRetrieveBoundsFileCount(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for i := 0; i < 10; i++ {
		writeFile(t, dir, filepath.Join("sub", string(rune('a'+i))+".txt"), "needle content")
	}

	e := NewEngine(dir, 3, 0, nil)
	hits := e.Retrieve("needle", 10)
	require.LessOrEqual(t, len(hits), 3)
}

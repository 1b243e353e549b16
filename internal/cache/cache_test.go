package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var awkwardIDs = []string{
	"INBOX:1:1",
	"INBOX:1:2",
	"",
	`"quoted"`,
	"line\nbreak",
	"carriage\rreturn",
	" padded ",
	"ünïcode:9:9",
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "processed.txt")

	c, err := Open(ctx, NewFileStore(path))
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())

	for _, id := range awkwardIDs {
		c.MarkProcessed(id)
	}
	require.NoError(t, c.Flush(ctx))

	reloaded, err := Open(ctx, NewFileStore(path))
	require.NoError(t, err)
	if diff := cmp.Diff(c.IDs(), reloaded.IDs()); diff != "" {
		t.Errorf("reloaded set differs (-want +got):\n%s", diff)
	}
	for _, id := range awkwardIDs {
		assert.True(t, reloaded.Contains(id), "missing %q", id)
	}
}

func TestFileStore_PlainLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\r\nb\n\nc"), 0o644))

	ids, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestFileStore_Missing(t *testing.T) {
	ids, err := NewFileStore(filepath.Join(t.TempDir(), "absent.txt")).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFileStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "processed.txt"))
	require.NoError(t, s.Save(context.Background(), []string{"x"}))
	require.NoError(t, s.Save(context.Background(), []string{"y"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	ids, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, ids)
}

func TestProcessedCache_MarkProcessed(t *testing.T) {
	ctx := context.Background()
	c, err := Open(ctx, NewFileStore(filepath.Join(t.TempDir(), "p.txt")))
	require.NoError(t, err)

	assert.Equal(t, 1, c.MarkProcessed("a"))
	assert.Equal(t, 1, c.MarkProcessed("a"), "re-marking is not a new addition")
	assert.Equal(t, 2, c.MarkProcessed("b"))
	assert.True(t, c.Contains("a"))
	assert.False(t, c.Contains("z"))

	require.NoError(t, c.Flush(ctx))
	assert.Equal(t, 1, c.MarkProcessed("c"))
	assert.Equal(t, []string{"a", "b", "c"}, c.IDs())
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer db.Close()

	alice := NewSQLiteStore(db, "alice@example.com")
	bob := NewSQLiteStore(db, "bob@example.com")

	c, err := Open(ctx, alice)
	require.NoError(t, err)
	for _, id := range awkwardIDs {
		c.MarkProcessed(id)
	}
	require.NoError(t, c.Flush(ctx))
	require.NoError(t, bob.Save(ctx, []string{"INBOX:5:5"}))

	reloaded, err := Open(ctx, alice)
	require.NoError(t, err)
	if diff := cmp.Diff(c.IDs(), reloaded.IDs()); diff != "" {
		t.Errorf("reloaded set differs (-want +got):\n%s", diff)
	}

	// flushing a smaller set replaces rather than appends
	require.NoError(t, alice.Save(ctx, []string{"INBOX:1:1"}))
	ids, err := alice.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"INBOX:1:1"}, ids)

	ids, err = bob.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"INBOX:5:5"}, ids)
}

func TestAccountPath(t *testing.T) {
	tests := []struct {
		base, account, want string
	}{
		{"processed_messages.txt", "Me@Example.com", "processed_messages.me@example.com.txt"},
		{"/var/lib/cache", "a b/c@x.io", "/var/lib/cache.a_b_c@x.io"},
		{"cache.txt", "", "cache.txt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AccountPath(tt.base, tt.account))
	}
}

package gitsource_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/defectscope/internal/gitsource"
	"github.com/Sumatoshi-tech/defectscope/pkg/history"
)

type fixture struct {
	t     *testing.T
	dir   string
	repo  *git2go.Repository
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return &fixture{t: t, dir: dir, repo: repo, clock: time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *fixture) write(name, content string) {
	f.t.Helper()

	path := filepath.Join(f.dir, name)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(f.t, os.WriteFile(path, []byte(content), 0o644))
}

func (f *fixture) remove(name string) {
	f.t.Helper()

	require.NoError(f.t, os.Remove(filepath.Join(f.dir, name)))
}

func (f *fixture) commit(message string) {
	f.t.Helper()

	index, err := f.repo.Index()
	require.NoError(f.t, err)

	defer index.Free()

	require.NoError(f.t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
	require.NoError(f.t, index.UpdateAll([]string{"*"}, nil))
	require.NoError(f.t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(f.t, err)

	tree, err := f.repo.LookupTree(treeID)
	require.NoError(f.t, err)

	defer tree.Free()

	f.clock = f.clock.Add(48 * time.Hour)
	sig := &git2go.Signature{Name: "Dev", Email: "dev@example.com", When: f.clock}

	var parents []*git2go.Commit

	head, err := f.repo.Head()
	if err == nil {
		parent, lookupErr := f.repo.LookupCommit(head.Target())
		require.NoError(f.t, lookupErr)

		parents = append(parents, parent)

		head.Free()
	}

	_, err = f.repo.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(f.t, err)

	for _, p := range parents {
		p.Free()
	}
}

func collect(t *testing.T, src history.Source) []*history.Revision {
	t.Helper()

	var revs []*history.Revision

	require.NoError(t, src.Walk(context.Background(), func(r *history.Revision) error {
		revs = append(revs, r)

		return nil
	}))

	return revs
}

func TestWalkDeliversRevisionsOldestFirst(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.write("A.java", "a\nb\n")
	f.write("B.java", "x\n")
	f.commit("initial import")

	f.write("A.java", "a\nb\nc\n")
	f.remove("B.java")
	f.commit("PROJ-7 fix the thing")

	src, err := gitsource.Open(f.dir, gitsource.Options{}, nil)
	require.NoError(t, err)

	t.Cleanup(src.Close)

	revs := collect(t, src)
	require.Len(t, revs, 2)

	root := revs[0]
	assert.False(t, root.HasParent)
	assert.Empty(t, root.Changes)
	assert.Equal(t, "initial import", root.Message)
	assert.Len(t, root.Hash, 40)

	fix := revs[1]
	assert.True(t, fix.HasParent)
	assert.True(t, fix.Date.After(root.Date))
	require.Len(t, fix.Changes, 2)

	byPath := map[string]history.FileChange{}
	for _, c := range fix.Changes {
		byPath[c.Path()] = c
	}

	a := byPath["A.java"]
	assert.Equal(t, history.Modify, a.Kind)
	assert.Equal(t, []history.Edit{{Type: history.EditInsert, BeginA: 2, EndA: 2, BeginB: 2, EndB: 3}}, a.Edits)

	b := byPath["B.java"]
	assert.Equal(t, history.Delete, b.Kind)
	assert.Empty(t, b.NewPath)
	assert.Equal(t, 1, b.Edits[0].LinesA())

	files, err := src.HeadFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"A.java"}, files)
}

func TestWalkNewestFirstAndStop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	for _, msg := range []string{"one", "two", "three"} {
		f.write("A.java", msg+"\n")
		f.commit(msg)
	}

	src, err := gitsource.Open(f.dir, gitsource.Options{NewestFirst: true}, nil)
	require.NoError(t, err)

	t.Cleanup(src.Close)

	var seen []string

	err = src.Walk(context.Background(), func(r *history.Revision) error {
		seen = append(seen, r.Message)
		if len(seen) == 2 {
			return history.ErrStopWalk
		}

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"three", "two"}, seen)
}

func TestWalkHonoursCancellation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.write("A.java", "a\n")
	f.commit("only")

	src, err := gitsource.Open(f.dir, gitsource.Options{}, nil)
	require.NoError(t, err)

	t.Cleanup(src.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = src.Walk(ctx, func(*history.Revision) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestOpenMissingRepository(t *testing.T) {
	t.Parallel()

	_, err := gitsource.Open(filepath.Join(t.TempDir(), "nope"), gitsource.Options{}, nil)
	require.Error(t, err)
}

package gitlib

import (
	"fmt"
	"sort"

	git2go "github.com/libgit2/git2go/v34"
)

// Tree wraps a libgit2 tree.
type Tree struct {
	tree *git2go.Tree
	repo *Repository
}

// Hash returns the tree id.
func (t *Tree) Hash() Hash {
	return HashFromOid(t.tree.Id())
}

// Files lists every blob path in the tree recursively, sorted.
func (t *Tree) Files() ([]string, error) {
	var files []string

	err := t.tree.Walk(func(root string, entry *git2go.TreeEntry) error {
		if entry.Type == git2go.ObjectBlob {
			files = append(files, root+entry.Name)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk tree: %w", err)
	}

	sort.Strings(files)

	return files, nil
}

// Free releases the tree.
func (t *Tree) Free() {
	if t.tree != nil {
		t.tree.Free()
		t.tree = nil
	}
}

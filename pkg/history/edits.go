package history

import (
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineEdits computes the line-level edit list turning oldText into newText.
// Adjacent deletions and insertions collapse into a single replace edit.
func LineEdits(oldText, newText string) []Edit {
	dmp := diffmatchpatch.New()

	oldChars, newChars, _ := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(oldChars, newChars, false)

	return editsFromDiffs(diffs)
}

// editsFromDiffs walks line-mode diffs where every rune stands for one line.
func editsFromDiffs(diffs []diffmatchpatch.Diff) []Edit {
	var (
		edits      []Edit
		posA, posB int
		pendingDel int
		pendingIns int
	)

	flush := func() {
		if pendingDel == 0 && pendingIns == 0 {
			return
		}

		edit := Edit{
			BeginA: posA,
			EndA:   posA + pendingDel,
			BeginB: posB,
			EndB:   posB + pendingIns,
		}

		switch {
		case pendingDel > 0 && pendingIns > 0:
			edit.Type = EditReplace
		case pendingDel > 0:
			edit.Type = EditDelete
		default:
			edit.Type = EditInsert
		}

		edits = append(edits, edit)

		posA += pendingDel
		posB += pendingIns
		pendingDel, pendingIns = 0, 0
	}

	for _, d := range diffs {
		lines := utf8.RuneCountInString(d.Text)

		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()

			posA += lines
			posB += lines
		case diffmatchpatch.DiffDelete:
			pendingDel += lines
		case diffmatchpatch.DiffInsert:
			pendingIns += lines
		}
	}

	flush()

	return edits
}

package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/defectscope/pkg/filter"
)

func TestExtension(t *testing.T) {
	t.Parallel()

	f := filter.New("")

	assert.True(t, f.Match("src/main/java/Foo.java"))
	assert.False(t, f.Match("README.md"))
	assert.False(t, f.Match(""))

	assert.True(t, filter.New("go").Match("cmd/main.go"))
}

func TestSkipPrefixesAndVendor(t *testing.T) {
	t.Parallel()

	f := filter.New(".go")
	f.SkipVendor = true
	f.SkipPrefixes = []string{"testdata/"}

	assert.False(t, f.Match("vendor/github.com/x/y.go"))
	assert.False(t, f.Match("testdata/fixture.go"))
	assert.True(t, f.Match("pkg/a.go"))
}

func TestLanguages(t *testing.T) {
	t.Parallel()

	f := &filter.Filter{Languages: []string{"java"}}

	assert.True(t, f.Match("A.java"))
	assert.False(t, f.Match("a.py"))
	assert.False(t, f.Match("Makefile.unknownext"))

	assert.Equal(t, []string{"A.java"}, f.Paths([]string{"a.py", "A.java"}))
}

package stackblock_test

import (
	"strings"
	"testing"

	"github.com/pancake-vcs/pk/internal/forge/stackblock"
	"github.com/stretchr/testify/require"
)

func TestRenderThenParseRoundTrips(t *testing.T) {
	block := stackblock.Block{Entries: []stackblock.Entry{
		{Branch: "feat-a", Number: 10},
		{Branch: "feat-b", Number: 11, Current: true},
	}}

	body := stackblock.Render("Original description.\n", block)
	require.True(t, strings.HasPrefix(body, "Original description.\n"))

	_, _, parsed, err := stackblock.Parse(body)
	require.NoError(t, err)
	require.Equal(t, block, parsed)
}

func TestRenderPreservesHumanEditsOutsideFence(t *testing.T) {
	block := stackblock.Block{Entries: []stackblock.Entry{{Branch: "feat-a", Number: 1, Current: true}}}
	first := stackblock.Render("my description", block)

	edited := first + "P.S. reviewers: see the linked doc.\n"

	block2 := stackblock.Block{Entries: []stackblock.Entry{
		{Branch: "feat-a", Number: 1},
		{Branch: "feat-b", Number: 2, Current: true},
	}}
	second := stackblock.Render(edited, block2)

	require.Contains(t, second, "my description")
	require.Contains(t, second, "P.S. reviewers: see the linked doc.")
	_, _, parsed, err := stackblock.Parse(second)
	require.NoError(t, err)
	require.Equal(t, block2, parsed)
}

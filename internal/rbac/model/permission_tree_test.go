package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(nodes []*PermissionNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Code)
	}
	return out
}

func TestBuildTree(t *testing.T) {
	perms := []*Permission{
		{Code: "user.update", ParentCode: "user"},
		{Code: "user", ParentCode: ""},
		{Code: "user.create", ParentCode: "user"},
		{Code: "group"},
		{Code: "user.create.bulk", ParentCode: "user.create"},
		nil,
	}

	roots := BuildTree(perms)
	require.Equal(t, []string{"group", "user"}, codes(roots))
	assert.Empty(t, roots[0].Children)

	user := roots[1]
	require.Equal(t, []string{"user.create", "user.update"}, codes(user.Children))
	assert.Equal(t, []string{"user.create.bulk"}, codes(user.Children[0].Children))
}

func TestBuildTree_OrphansBecomeRoots(t *testing.T) {
	roots := BuildTree([]*Permission{
		{Code: "report.view", ParentCode: "report"},
		{Code: "audit"},
	})
	assert.Equal(t, []string{"audit", "report.view"}, codes(roots))
}

func TestBuildTree_TerminatesOnCycles(t *testing.T) {
	roots := BuildTree([]*Permission{
		{Code: "a", ParentCode: "b"},
		{Code: "b", ParentCode: "a"},
		{Code: "c", ParentCode: "a"},
	})
	require.Equal(t, []string{"a", "b"}, codes(roots))
	assert.Equal(t, []string{"c"}, codes(roots[0].Children))
	assert.Empty(t, roots[1].Children)
}

func TestBuildTree_Empty(t *testing.T) {
	roots := BuildTree(nil)
	assert.NotNil(t, roots)
	assert.Empty(t, roots)
}

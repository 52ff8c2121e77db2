package transport

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func fixtureFS() fstest.MapFS {
	return fstest.MapFS{
		"main.go":              &fstest.MapFile{Data: []byte("package main\n")},
		"main_test.go":         &fstest.MapFile{Data: []byte("package main\n")},
		"internal/app.go":      &fstest.MapFile{Data: []byte("package internal\n\nfunc Run() {}\n")},
		"internal/app_test.go": &fstest.MapFile{Data: []byte("package internal\n")},
	}
}

func TestBuildRepoMapExcludesTestsByDefault(t *testing.T) {
	repoMap, err := BuildRepoMap(fixtureFS(), false)
	require.NoError(t, err)
	require.Equal(t, 2, repoMap.TotalFiles)
}

func TestBuildRepoMapIncludesTestsWhenRequested(t *testing.T) {
	repoMap, err := BuildRepoMap(fixtureFS(), true)
	require.NoError(t, err)
	require.Equal(t, 4, repoMap.TotalFiles)
}

func TestBuildRepoMapNestsChildrenUnderParents(t *testing.T) {
	repoMap, err := BuildRepoMap(fixtureFS(), true)
	require.NoError(t, err)

	var internalDir *RepoNode
	for _, child := range repoMap.Structure.Children {
		if child.Name == "internal" {
			internalDir = child
		}
	}
	require.NotNil(t, internalDir)
	require.True(t, internalDir.IsDir)
	require.Len(t, internalDir.Children, 2)
}

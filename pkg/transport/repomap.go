package transport

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// RepoNode is one entry of get_repo_map's hierarchical structure
// (spec §6: "Returns a hierarchical {structure, total_files,
// total_tokens_estimated}"). No repo in the pack implements repository
// tree summarization, so this walk is built directly against the
// standard library's io/fs (documented in DESIGN.md as a stdlib-only
// component for that reason).
type RepoNode struct {
	Name            string      `json:"name"`
	Path            string      `json:"path"`
	IsDir           bool        `json:"is_dir"`
	TokensEstimated int         `json:"tokens_estimated,omitempty"`
	Children        []*RepoNode `json:"children,omitempty"`
}

// RepoMap is get_repo_map's full response.
type RepoMap struct {
	Structure            *RepoNode `json:"structure"`
	TotalFiles            int      `json:"total_files"`
	TotalTokensEstimated   int      `json:"total_tokens_estimated"`
}

// testFileSuffixes identifies source files excluded unless include_tests.
var testFileSuffixes = []string{"_test.go", ".test.ts", ".test.tsx", ".test.js", ".spec.ts", ".spec.js"}

func isTestFile(name string) bool {
	for _, suf := range testFileSuffixes {
		if strings.HasSuffix(name, suf) {
			return true
		}
	}
	return false
}

// estimateTokens uses the common chars-per-token-4 heuristic; good
// enough for a budgeting estimate, not for exact accounting.
func estimateTokens(byteSize int64) int {
	return int(byteSize) / 4
}

// BuildRepoMap walks root (an fs.FS rooted at repo_path) and returns
// its hierarchical structure, file count, and estimated token total.
func BuildRepoMap(root fs.FS, includeTests bool) (RepoMap, error) {
	nodes := map[string]*RepoNode{".": {Name: ".", Path: ".", IsDir: true}}
	totalFiles := 0
	totalTokens := 0

	err := fs.WalkDir(root, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == "." {
			return nil
		}
		name := d.Name()
		if !includeTests && !d.IsDir() && isTestFile(name) {
			return nil
		}

		node := &RepoNode{Name: name, Path: path, IsDir: d.IsDir()}
		if !d.IsDir() {
			info, infoErr := d.Info()
			if infoErr == nil {
				node.TokensEstimated = estimateTokens(info.Size())
			}
			totalFiles++
			totalTokens += node.TokensEstimated
		}
		nodes[path] = node

		parent := parentKey(path)
		parentNode, ok := nodes[parent]
		if !ok {
			return nil
		}
		parentNode.Children = append(parentNode.Children, node)
		return nil
	})
	if err != nil {
		return RepoMap{}, err
	}

	sortChildren(nodes["."])

	return RepoMap{
		Structure:          nodes["."],
		TotalFiles:         totalFiles,
		TotalTokensEstimated: totalTokens,
	}, nil
}

func parentKey(path string) string {
	dir := filepath.Dir(filepath.ToSlash(path))
	if dir == "." || dir == "" {
		return "."
	}
	return dir
}

func sortChildren(n *RepoNode) {
	if n == nil {
		return
	}
	sort.Slice(n.Children, func(i, j int) bool { return n.Children[i].Name < n.Children[j].Name })
	for _, c := range n.Children {
		sortChildren(c)
	}
}

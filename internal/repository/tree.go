// Package repository turns the server's repository listing into a tree of
// files and folders and answers existence questions about it.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// Unbounded asks for the whole repository tree.
const Unbounded = -1

// FileTree is the listing returned by the repository children endpoint.
type FileTree struct {
	File     *FileEntry  `json:"file"`
	Children []*FileTree `json:"children"`
}

// FileEntry describes one repository file or folder.
type FileEntry struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Folder bool   `json:"folder"`
	Hidden bool   `json:"hidden"`
}

// Node is one file or folder of a built tree. Children keep the server order.
type Node struct {
	Name     string
	Path     string
	IsFolder bool
	Children []*Node
}

// Browser lists the server repository.
type Browser interface {
	ListChildren(ctx context.Context, depth int, filter string, showHidden bool) (*FileTree, error)
}

// Build converts a listing into a Node tree, keeping at most maxDepth levels
// below the root. A negative maxDepth keeps everything. A listing without a
// root entry yields nil.
func Build(tree *FileTree, maxDepth int) *Node {
	if tree == nil || tree.File == nil {
		return nil
	}
	return build(tree, maxDepth, 0)
}

func build(tree *FileTree, maxDepth, depth int) *Node {
	n := &Node{
		Name:     tree.File.Name,
		Path:     tree.File.Path,
		IsFolder: tree.File.Folder,
	}
	if maxDepth >= 0 && depth >= maxDepth {
		return n
	}
	for _, child := range tree.Children {
		if child == nil || child.File == nil {
			continue
		}
		n.Children = append(n.Children, build(child, maxDepth, depth+1))
	}
	return n
}

// Walk visits n and its descendants depth-first, parents before children.
// Returning false from fn stops the walk.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Contains reports whether a file called name lives in folder dir.
func (n *Node) Contains(dir, name string) bool {
	if dir == "" || name == "" {
		return false
	}
	dir = cleanDir(dir)

	found := false
	n.Walk(func(c *Node) bool {
		if c.IsFolder || c.Name != name {
			return true
		}
		if cleanDir(path.Dir(c.Path)) == dir || cleanDir(c.Path) == dir {
			found = true
			return false
		}
		return true
	})
	return found
}

func cleanDir(p string) string {
	p = path.Clean("/" + strings.TrimSpace(p))
	return strings.TrimSuffix(p, "/")
}

// Exists fetches a fresh, unbounded listing and checks it for name in dir.
// Callers with many checks should Build once and use Contains instead.
func Exists(ctx context.Context, b Browser, dir, name string) (bool, error) {
	if dir == "" || name == "" {
		return false, nil
	}
	tree, err := b.ListChildren(ctx, Unbounded, "*", false)
	if err != nil {
		return false, err
	}
	return Build(tree, Unbounded).Contains(dir, name), nil
}

// Getter is the part of the server client the browser needs.
type Getter interface {
	Get(ctx context.Context, path string) ([]byte, error)
}

// HTTPBrowser lists the repository through the server REST API.
type HTTPBrowser struct {
	Client Getter
}

func (b *HTTPBrowser) ListChildren(ctx context.Context, depth int, filter string, showHidden bool) (*FileTree, error) {
	if filter == "" {
		filter = "*"
	}
	q := url.Values{}
	q.Set("depth", strconv.Itoa(depth))
	q.Set("filter", filter)
	q.Set("showHidden", strconv.FormatBool(showHidden))

	body, err := b.Client.Get(ctx, "api/repo/files/children?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var tree FileTree
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode repository listing: %w", err)
	}
	return &tree, nil
}

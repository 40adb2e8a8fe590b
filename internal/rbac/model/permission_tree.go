package model

import "sort"

// PermissionNode is one node of the derived permission forest.
type PermissionNode struct {
	*Permission
	Children []*PermissionNode `json:"children,omitempty"`
}

// BuildTree projects a flat permission list into a forest. Children of a node
// are the permissions whose ParentCode equals the node's Code. A permission
// whose parent is absent from perms is treated as a root. Siblings are
// ordered by code.
func BuildTree(perms []*Permission) []*PermissionNode {
	nodes := make(map[string]*PermissionNode, len(perms))
	for _, p := range perms {
		if p == nil {
			continue
		}
		nodes[p.Code] = &PermissionNode{Permission: p}
	}

	roots := make([]*PermissionNode, 0)
	for _, p := range perms {
		if p == nil {
			continue
		}
		node := nodes[p.Code]
		parent, ok := nodes[p.ParentCode]
		if p.ParentCode == "" || !ok || onCycle(nodes, p.Code) {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	sortNodes(roots)
	return roots
}

func sortNodes(nodes []*PermissionNode) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Code < nodes[j].Code })
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}

// onCycle reports whether walking up from code returns to code. Stored data
// is acyclic; this only keeps the projection finite on corrupt input.
func onCycle(nodes map[string]*PermissionNode, code string) bool {
	seen := map[string]bool{}
	cur := code
	for {
		n, ok := nodes[cur]
		if !ok || n.ParentCode == "" {
			return false
		}
		cur = n.ParentCode
		if cur == code {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
	}
}

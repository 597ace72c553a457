package routing

import (
	"fmt"
	"strings"
)

// TrieNode represents a node in the route trie
type TrieNode struct {
	segment       string                 // Path segment ("roles", ":id", "*")
	isParam       bool                   // True if this segment is a parameter
	paramName     string                 // Parameter name ("id" for ":id" or "{id}")
	children      map[string]*TrieNode   // Static children (exact matches)
	paramChild    *TrieNode              // Parameter child
	wildcardChild *TrieNode              // Wildcard child ("*")
	rules         map[string]*AccessRule // Method -> rule
}

// NewTrieNode creates a new trie node
func NewTrieNode(segment string) *TrieNode {
	node := &TrieNode{
		segment:  segment,
		children: make(map[string]*TrieNode),
	}

	if name, ok := ParamName(segment); ok {
		node.isParam = true
		node.paramName = name
	}

	return node
}

// AddChild adds or retrieves a child node. Two parameter segments with
// different names at the same depth are rejected so matching stays
// unambiguous.
func (n *TrieNode) AddChild(segment string) (*TrieNode, error) {
	if IsWildcardSegment(segment) {
		if n.wildcardChild == nil {
			n.wildcardChild = NewTrieNode(segment)
		}
		return n.wildcardChild, nil
	}

	if name, ok := ParamName(segment); ok {
		if n.paramChild == nil {
			n.paramChild = NewTrieNode(segment)
			return n.paramChild, nil
		}
		if n.paramChild.paramName != name {
			return nil, fmt.Errorf("%w: :%s conflicts with :%s", ErrParamConflict, name, n.paramChild.paramName)
		}
		return n.paramChild, nil
	}

	if child, exists := n.children[segment]; exists {
		return child, nil
	}

	child := NewTrieNode(segment)
	n.children[segment] = child
	return child, nil
}

// match walks the remaining segments depth first with priority
// static > parameter > wildcard, backtracking when a branch dead-ends.
// accept decides whether a terminal node satisfies the lookup.
func (n *TrieNode) match(segments []string, params map[string]string, accept func(*TrieNode) bool) *TrieNode {
	if len(segments) == 0 {
		if accept(n) {
			return n
		}
		return nil
	}

	segment, rest := segments[0], segments[1:]

	if child, exists := n.children[segment]; exists {
		if found := child.match(rest, params, accept); found != nil {
			return found
		}
	}

	if n.paramChild != nil {
		previous, had := params[n.paramChild.paramName]
		params[n.paramChild.paramName] = segment
		if found := n.paramChild.match(rest, params, accept); found != nil {
			return found
		}
		if had {
			params[n.paramChild.paramName] = previous
		} else {
			delete(params, n.paramChild.paramName)
		}
	}

	if n.wildcardChild != nil {
		previous, had := params[WildcardParam]
		params[WildcardParam] = segment
		if found := n.wildcardChild.match(rest, params, accept); found != nil {
			return found
		}
		if had {
			params[WildcardParam] = previous
		} else {
			delete(params, WildcardParam)
		}
	}

	return nil
}

// WildcardParam is the params key holding the segment matched by "*".
const WildcardParam = "wildcard"

// ParseURI splits a URI path into segments
// Example: "/staff/roles/42" -> ["staff", "roles", "42"]
func ParseURI(uri string) []string {
	uri = strings.Trim(uri, "/")

	if uri == "" {
		return []string{}
	}

	return strings.Split(uri, "/")
}

// BuildURIPattern builds a URI pattern from segments
// Example: ["staff", "roles", ":id"] -> "/staff/roles/:id"
func BuildURIPattern(segments []string) string {
	if len(segments) == 0 {
		return "/"
	}
	return "/" + strings.Join(segments, "/")
}

// ParamName returns the parameter name for ":id" or "{id}" segments.
func ParamName(segment string) (string, bool) {
	if len(segment) > 1 && segment[0] == ':' {
		return segment[1:], true
	}
	if len(segment) > 2 && segment[0] == '{' && segment[len(segment)-1] == '}' {
		return segment[1 : len(segment)-1], true
	}
	return "", false
}

// IsParameterSegment checks if a segment is a parameter
func IsParameterSegment(segment string) bool {
	_, ok := ParamName(segment)
	return ok
}

// IsWildcardSegment checks if a segment is a wildcard
func IsWildcardSegment(segment string) bool {
	return segment == "*"
}

// NormalizePath strips the API base path and a leading locale segment so
// "/api/v1/en/staff/roles/42" and "/staff/roles/42" resolve the same rule.
func NormalizePath(path, basePath string, locales []string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	if base := strings.TrimRight(basePath, "/"); base != "" {
		if path == base {
			path = "/"
		} else if strings.HasPrefix(path, base+"/") {
			path = path[len(base):]
		}
	}

	segments := ParseURI(path)
	if len(segments) > 0 {
		for _, locale := range locales {
			if strings.EqualFold(segments[0], locale) {
				segments = segments[1:]
				break
			}
		}
	}

	return BuildURIPattern(segments)
}

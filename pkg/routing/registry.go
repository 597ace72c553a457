package routing

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrRouteNotFound is returned when no route matches the request
	ErrRouteNotFound = errors.New("route not found")

	// ErrMethodNotAllowed is returned when route exists but method is not allowed
	ErrMethodNotAllowed = errors.New("method not allowed")

	// ErrRouteAlreadyExists is returned when a table holds the same method and pattern twice
	ErrRouteAlreadyExists = errors.New("route already exists")

	// ErrParamConflict is returned when two patterns name the same parameter slot differently
	ErrParamConflict = errors.New("conflicting parameter names")
)

// AccessRule is the access requirement attached to one method and path pattern.
type AccessRule struct {
	Method       string
	Path         string
	AuthRequired bool
	// Permission must be granted by the account's role. Empty means none.
	Permission string
	// RequiresTwoFactor demands a 2FA-verified session even when the account
	// has 2FA disabled.
	RequiresTwoFactor bool
	// AllowPendingTwoFactor lets sessions that still owe a 2FA code through.
	AllowPendingTwoFactor bool
}

// Key identifies a rule by method and pattern.
func (r AccessRule) Key() string {
	return strings.ToUpper(r.Method) + " " + r.Path
}

// RouteRegistry maintains an in-memory trie of access rules
type RouteRegistry struct {
	mu     sync.RWMutex
	root   *TrieNode
	routes map[string]*AccessRule
	logger *zap.Logger
}

// NewRouteRegistry creates a new route registry
func NewRouteRegistry(logger *zap.Logger) *RouteRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouteRegistry{
		root:   NewTrieNode(""),
		routes: make(map[string]*AccessRule),
		logger: logger,
	}
}

func (r *RouteRegistry) insert(root *TrieNode, routes map[string]*AccessRule, rule AccessRule) error {
	rule.Method = strings.ToUpper(rule.Method)
	rule.Path = BuildURIPattern(ParseURI(rule.Path))
	routeKey := rule.Key()

	if _, exists := routes[routeKey]; exists {
		return fmt.Errorf("%w: path=%s, method=%s", ErrRouteAlreadyExists, rule.Path, rule.Method)
	}

	node := root
	for _, segment := range ParseURI(rule.Path) {
		child, err := node.AddChild(segment)
		if err != nil {
			return fmt.Errorf("add %s: %w", routeKey, err)
		}
		node = child
	}

	if node.rules == nil {
		node.rules = make(map[string]*AccessRule)
	}

	stored := rule
	node.rules[rule.Method] = &stored
	routes[routeKey] = &stored

	r.logger.Debug("Access rule added",
		zap.String("path", rule.Path),
		zap.String("method", rule.Method),
		zap.Bool("auth_required", rule.AuthRequired),
		zap.String("permission", rule.Permission),
	)

	return nil
}

// Replace swaps the whole rule set atomically. On error the previous set stays.
func (r *RouteRegistry) Replace(rules []AccessRule) error {
	root := NewTrieNode("")
	routes := make(map[string]*AccessRule, len(rules))

	for _, rule := range rules {
		if err := r.insert(root, routes, rule); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.root = root
	r.routes = routes
	r.mu.Unlock()

	return nil
}

// Match finds the rule for the given normalised path and method.
// Returns: (rule, params, error)
func (r *RouteRegistry) Match(path, method string) (*AccessRule, map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	method = strings.ToUpper(method)
	segments := ParseURI(path)

	params := make(map[string]string)
	node := r.root.match(segments, params, func(n *TrieNode) bool {
		_, ok := n.rules[method]
		return ok
	})
	if node != nil {
		rule := *node.rules[method]
		return &rule, params, nil
	}

	anyMethod := r.root.match(segments, make(map[string]string), func(n *TrieNode) bool {
		return len(n.rules) > 0
	})
	if anyMethod != nil {
		r.logger.Debug("Method not allowed",
			zap.String("path", path),
			zap.String("method", method),
			zap.Strings("available_methods", methodsOf(anyMethod.rules)),
		)
		return nil, nil, ErrMethodNotAllowed
	}

	return nil, nil, ErrRouteNotFound
}

func methodsOf(m map[string]*AccessRule) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Count returns the total number of rules
func (r *RouteRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.routes)
}

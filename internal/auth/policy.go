package auth

import (
	"fmt"

	"easybid/models"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Anonymous is the subject of requests without a token. Every authenticated
// role inherits its permissions through Member.
const (
	Anonymous = "anonymous"
	Member    = "member"
)

// Objects are chi route patterns, actions HTTP methods.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// Rule grants one role access to one route.
type Rule struct {
	Role   string
	Method string
	Route  string
}

// Policy decides route access by role.
type Policy struct {
	enforcer *casbin.Enforcer
}

func NewPolicy(rules []Rule) (*Policy, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}

	groups := [][]string{{Member, Anonymous}}
	for _, role := range []models.Role{models.RoleBuyer, models.RoleSupplier, models.RoleAdmin} {
		groups = append(groups, []string{string(role), Member})
	}
	if _, err := e.AddGroupingPolicies(groups); err != nil {
		return nil, fmt.Errorf("add role hierarchy: %w", err)
	}

	for _, r := range rules {
		if _, err := e.AddPolicy(r.Role, r.Route, r.Method); err != nil {
			return nil, fmt.Errorf("add policy %s %s for %s: %w", r.Method, r.Route, r.Role, err)
		}
	}
	return &Policy{enforcer: e}, nil
}

// Allowed reports whether role may call method on route. An empty role is
// Anonymous.
func (p *Policy) Allowed(role, method, route string) (bool, error) {
	if role == "" {
		role = Anonymous
	}
	return p.enforcer.Enforce(role, route, method)
}

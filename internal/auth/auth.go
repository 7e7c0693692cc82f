/*

Capability-based authorization for gated vault entry points. The core only
asks the Authorizer question "does this account hold capability X"; role
storage lives outside the core's data model.

*/

package auth

import "github.com/elys-network/clvm/internal/types"

// Capability names a permission checked before a gated operation.
type Capability string

const (
	// CapabilityManager gates position operations and reward distribution.
	CapabilityManager Capability = "manager"
	// CapabilityAdmin gates fee and beneficiary configuration.
	CapabilityAdmin Capability = "admin"
)

// Authorizer answers capability queries for gated entry points.
type Authorizer interface {
	HasCapability(account types.Account, capability Capability) bool
}

// StaticRegistry is an in-process Authorizer backed by an explicit grant
// table. It is not safe for concurrent mutation; grant everything at
// wiring time.
type StaticRegistry struct {
	grants map[types.Account]map[Capability]bool
}

// NewStaticRegistry returns an empty registry with no grants.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{grants: make(map[types.Account]map[Capability]bool)}
}

// Grant gives account the capability.
func (r *StaticRegistry) Grant(account types.Account, capability Capability) {
	if account.IsNone() {
		return
	}
	if _, ok := r.grants[account]; !ok {
		r.grants[account] = make(map[Capability]bool)
	}
	r.grants[account][capability] = true
}

// Revoke removes the capability from account.
func (r *StaticRegistry) Revoke(account types.Account, capability Capability) {
	if caps, ok := r.grants[account]; ok {
		delete(caps, capability)
	}
}

// HasCapability implements Authorizer.
func (r *StaticRegistry) HasCapability(account types.Account, capability Capability) bool {
	if caps, ok := r.grants[account]; ok {
		return caps[capability]
	}
	return false
}

package auth

import (
	"errors"

	"github.com/userhub/apiserver/types"
)

// ErrForbidden is returned when an access decision is DENY.
var ErrForbidden = errors.New("forbidden")

// Decide is the access decision for a protected operation. It is a pure
// function of the caller identity, the operation's required roles, and the
// acceptable owner ids of the target resource.
//
// The rules apply in order:
//  1. An admin caller is allowed unconditionally, ownership included.
//  2. A caller whose role is not in required is denied, before ownership
//     is considered.
//  3. If owner ids are given and the caller's id matches none, deny.
//  4. Otherwise allow.
//
// A resource may be addressable by more than one identifier (a user id or
// a linked profile id), so ownership is expressed as a set of acceptable
// owner ids rather than a single comparison.
func Decide(identity Identity, required []types.Role, ownerIDs ...string) error {
	if identity.Role == types.RoleAdmin {
		return nil
	}

	allowed := false
	for _, role := range required {
		if identity.Role == role {
			allowed = true
			break
		}
	}
	if !allowed {
		return ErrForbidden
	}

	if len(ownerIDs) == 0 {
		return nil
	}
	for _, owner := range ownerIDs {
		if owner != "" && identity.ID == owner {
			return nil
		}
	}
	return ErrForbidden
}

package policy

import "github.com/geocoder89/bankhub/internal/domain/user"

// Operation is a coarse-grained API capability checked before any handler
// logic runs.
type Operation string

const (
	OpCreateUser    Operation = "user.create"
	OpListUsers     Operation = "user.list"
	OpAccountRead   Operation = "account.read"
	OpAccountMutate Operation = "account.mutate"
	OpTransfer      Operation = "transfer"
)

// allowed maps each role to the operations it may perform. Admins manage
// users and nothing else; regular users manage only their own money. An
// admin is denied account operations even on an account it nominally owns.
var allowed = map[string]map[Operation]struct{}{
	user.RoleAdmin: {
		OpCreateUser: {},
	},
	user.RoleUser: {
		OpListUsers:     {},
		OpAccountRead:   {},
		OpAccountMutate: {},
		OpTransfer:      {},
	},
}

func Allow(role string, op Operation) bool {
	ops, ok := allowed[role]

	if !ok {
		return false
	}

	_, ok = ops[op]

	return ok
}

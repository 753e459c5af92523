// Package membership provides interfaces.MembershipSource adapters. The
// validator set and committee are owned by the host ledger; these adapters only
// read them.
package membership

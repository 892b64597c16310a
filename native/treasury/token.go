package treasury

import (
	"math/big"

	"treasuryvault/crypto"
)

// TokenAdapter is the opaque transfer/balance oracle external collaborator
// named in spec.md §1/§6. The engine never reasons about how a token moves
// balances between identities — only that it does, or reports
// ErrTransferFailed.
type TokenAdapter interface {
	Transfer(token string, from, to crypto.Address, amount *big.Int) error
	Balance(token string, addr crypto.Address) (*big.Int, error)
}

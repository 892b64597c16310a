package treasury

import (
	"strconv"

	"treasuryvault/crypto"
)

// recoverableExecuteError reports whether err should cause BatchExecuteProposals
// to skip the proposal and continue, rather than abort the whole batch
// (spec.md §4.8). Structural errors (authorization, initialization) abort;
// per-proposal state errors are recoverable.
func recoverableExecuteError(err error) bool {
	te, ok := err.(*Error)
	if !ok {
		return false
	}
	switch te.Code {
	case CodeProposalNotFound,
		CodeInvalidStatus,
		CodeProposalExpired,
		CodeTimelockNotExpired,
		CodeConditionsNotMet,
		CodeTransferFailed:
		return true
	default:
		return false
	}
}

// BatchExecuteProposals attempts ExecuteProposal for every id in order,
// skipping (not aborting on) per-proposal failures, and emits one summary
// event in addition to each individual proposal's own event.
func (e *Engine) BatchExecuteProposals(caller crypto.Address, ids []uint64, priceOracle PriceOracle) (*BatchResult, error) {
	if err := e.requireInitialized(); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.IsSigner(caller) {
		return nil, ErrUnauthorized
	}
	if cfg.MaxBatchSize > 0 && len(ids) > cfg.MaxBatchSize {
		return nil, ErrBatchTooLarge
	}

	result := &BatchResult{}
	for _, id := range ids {
		if _, err := e.ExecuteProposal(caller, id, priceOracle); err != nil {
			if recoverableExecuteError(err) {
				result.Failed = append(result.Failed, id)
				continue
			}
			return nil, err
		}
		result.Executed = append(result.Executed, id)
	}

	e.emit(newEvent(TopicBatchExecuted, map[string]string{
		"executed": strconv.Itoa(len(result.Executed)),
		"failed":   strconv.Itoa(len(result.Failed)),
	}))
	return result, nil
}

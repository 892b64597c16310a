package treasury

import "fmt"

// Kind is the error taxonomy named in spec.md §7: a coarse category that
// every numeric Code belongs to. Kind never changes meaning; Code is the
// stable wire identifier.
type Kind uint8

const (
	KindInitialization Kind = iota
	KindAuthorization
	KindRole
	KindProposalState
	KindLimitExceeded
	KindTimelock
	KindConfigInvalid
	KindTokenTransfer
	KindCondition
	KindListMembership
	KindInsurance
	KindReputation
	KindBatchSize
)

// Code is a stable numeric error identifier, grouped by hundred per
// spec.md §6: 1xx init, 2xx auth, 3xx proposal, 4xx limits/time, 5xx config,
// 6xx token, 7xx conditions, 8xx lists, 9xx comments, 10xx batch,
// 11xx insurance, 12xx reputation, 13xx dex, 14xx bridge. Codes are never
// renumbered once published.
type Code uint32

const (
	CodeNotInitialized     Code = 101
	CodeAlreadyInitialized Code = 102
	CodeInvalidConfig      Code = 103

	CodeUnauthorized Code = 201

	CodeInsufficientRole Code = 301

	CodeProposalNotFound     Code = 3001
	CodeInvalidStatus        Code = 3002
	CodeAlreadyExecuted      Code = 3003
	CodeProposalExpired      Code = 3004
	CodeAlreadyApproved      Code = 3005
	CodeProposalNotApproved  Code = 3006
	CodeExclusiveVote        Code = 3007
	CodeCancelNotAllowed     Code = 3008
	CodeAlreadyAbstained     Code = 3011 // returned instead of CodeAlreadyApproved on a repeated abstain, see SPEC_FULL.md §2(d)

	CodeAmountInvalid          Code = 4001
	CodePerProposalLimit       Code = 4002
	CodeDailyLimitExceeded     Code = 4003
	CodeWeeklyLimitExceeded    Code = 4004
	CodeVelocityLimitExceeded  Code = 4005
	CodeTimelockNotExpired     Code = 4006

	CodeConfigInvalid Code = 5001

	CodeTransferFailed Code = 6001

	CodeConditionsNotMet Code = 7010 // returned instead of CodeProposalNotApproved when execution conditions fail, see SPEC_FULL.md §2(d)

	CodeRecipientNotWhitelisted Code = 8001
	CodeRecipientBlacklisted    Code = 8002

	CodeBatchTooLarge Code = 10001

	CodeInsuranceInsufficient Code = 11001

	CodeReputationInvalid Code = 12001
)

// Error is the engine's error type: a stable numeric Code, the taxonomy Kind
// it belongs to, and a human-readable message for logs.
type Error struct {
	Code    Code
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("treasury: [%d] %s", e.Code, e.Message)
}

func newErr(code Code, kind Kind, format string, args ...interface{}) *Error {
	return &Error{Code: code, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrNotInitialized     = newErr(CodeNotInitialized, KindInitialization, "vault not initialized")
	ErrAlreadyInitialized = newErr(CodeAlreadyInitialized, KindInitialization, "vault already initialized")

	ErrUnauthorized = newErr(CodeUnauthorized, KindAuthorization, "caller attestation failed")

	ErrInsufficientRole = newErr(CodeInsufficientRole, KindRole, "caller role insufficient for this operation")

	ErrProposalNotFound    = newErr(CodeProposalNotFound, KindProposalState, "proposal not found")
	ErrInvalidStatus       = newErr(CodeInvalidStatus, KindProposalState, "proposal status does not permit this transition")
	ErrAlreadyExecuted     = newErr(CodeAlreadyExecuted, KindProposalState, "proposal already executed")
	ErrProposalExpired     = newErr(CodeProposalExpired, KindProposalState, "proposal expired")
	ErrAlreadyApproved     = newErr(CodeAlreadyApproved, KindProposalState, "signer already approved this proposal")
	ErrProposalNotApproved = newErr(CodeProposalNotApproved, KindProposalState, "proposal has not reached its effective threshold")
	ErrExclusiveVote       = newErr(CodeExclusiveVote, KindProposalState, "signer already cast the opposite ballot")
	ErrCancelNotAllowed    = newErr(CodeCancelNotAllowed, KindProposalState, "proposal cannot be cancelled once approvals exist")
	ErrAlreadyAbstained    = newErr(CodeAlreadyAbstained, KindProposalState, "signer already abstained on this proposal")

	ErrAmountInvalid         = newErr(CodeAmountInvalid, KindLimitExceeded, "amount must be positive")
	ErrPerProposalLimit      = newErr(CodePerProposalLimit, KindLimitExceeded, "amount exceeds per-proposal ceiling")
	ErrDailyLimitExceeded    = newErr(CodeDailyLimitExceeded, KindLimitExceeded, "amount exceeds remaining daily budget")
	ErrWeeklyLimitExceeded   = newErr(CodeWeeklyLimitExceeded, KindLimitExceeded, "amount exceeds remaining weekly budget")
	ErrVelocityLimitExceeded = newErr(CodeVelocityLimitExceeded, KindLimitExceeded, "proposer exceeded the velocity window limit")
	ErrTimelockNotExpired    = newErr(CodeTimelockNotExpired, KindTimelock, "timelock has not yet elapsed")

	ErrConfigInvalid = newErr(CodeConfigInvalid, KindConfigInvalid, "configuration invalid")

	ErrTransferFailed = newErr(CodeTransferFailed, KindTokenTransfer, "token transfer failed")

	ErrConditionsNotMet = newErr(CodeConditionsNotMet, KindCondition, "execution conditions not satisfied")

	ErrRecipientNotWhitelisted = newErr(CodeRecipientNotWhitelisted, KindListMembership, "recipient not whitelisted")
	ErrRecipientBlacklisted    = newErr(CodeRecipientBlacklisted, KindListMembership, "recipient blacklisted")

	ErrBatchTooLarge = newErr(CodeBatchTooLarge, KindBatchSize, "batch exceeds configured maximum size")

	ErrInsuranceInsufficient = newErr(CodeInsuranceInsufficient, KindInsurance, "insurance stake below required amount")

	ErrReputationInvalid = newErr(CodeReputationInvalid, KindReputation, "reputation record invalid")
)

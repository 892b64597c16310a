package treasury

import "math/big"

// PriceOracle is the external collaborator the Condition Evaluator consults
// for PriceAbove/PriceBelow predicates (spec.md §4.7, an out-of-scope
// external adapter per spec.md §1).
type PriceOracle interface {
	Price(token string) (*big.Int, error)
}

// ConditionContext carries the values a condition tree is evaluated against.
type ConditionContext struct {
	Balance   *big.Int
	NowLedger uint64
	Oracle    PriceOracle
}

// EvaluateConditions evaluates p's condition list under its configured
// combinator. An empty condition list always holds. Evaluation happens only
// at execution time (spec.md §4.7); failures are policy errors, never a
// terminal status.
func EvaluateConditions(p *Proposal, ctx ConditionContext) (bool, error) {
	if len(p.Conditions) == 0 {
		return true, nil
	}
	switch p.ConditionLogic {
	case ConditionLogicOr:
		for _, c := range p.Conditions {
			ok, err := evaluateCondition(c, ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default: // ConditionLogicAnd
		for _, c := range p.Conditions {
			ok, err := evaluateCondition(c, ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
}

func evaluateCondition(c Condition, ctx ConditionContext) (bool, error) {
	switch c.Kind {
	case ConditionBalanceAbove:
		if ctx.Balance == nil || c.Value == nil {
			return false, nil
		}
		return ctx.Balance.Cmp(c.Value) > 0, nil
	case ConditionDateAfter:
		return int64(ctx.NowLedger) > c.Timestamp, nil
	case ConditionDateBefore:
		return int64(ctx.NowLedger) < c.Timestamp, nil
	case ConditionPriceAbove:
		if ctx.Oracle == nil || c.Value == nil {
			return false, nil
		}
		price, err := ctx.Oracle.Price(c.Token)
		if err != nil {
			return false, err
		}
		return price.Cmp(c.Value) > 0, nil
	case ConditionPriceBelow:
		if ctx.Oracle == nil || c.Value == nil {
			return false, nil
		}
		price, err := ctx.Oracle.Price(c.Token)
		if err != nil {
			return false, err
		}
		return price.Cmp(c.Value) < 0, nil
	default:
		return false, nil
	}
}

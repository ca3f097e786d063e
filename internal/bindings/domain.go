// Package bindings maps group ranks to Discord role sets: persisted rules,
// the pure resolution and diff engines, and the batch mutation surface the
// dashboard saves through.
package bindings

// Operator compares a member's current rank against a rule's thresholds.
type Operator string

const (
	OpEq      Operator = "="
	OpGte     Operator = ">="
	OpLte     Operator = "<="
	OpBetween Operator = "between"
)

// Valid reports whether the operator is part of the rule grammar.
func (o Operator) Valid() bool {
	switch o {
	case OpEq, OpGte, OpLte, OpBetween:
		return true
	}
	return false
}

// MaxBatchRows caps insert+update rows per ApplyBatch call.
const MaxBatchRows = 25

// Rule binds a group-rank condition to a set of Discord role ids for one
// server. SecondaryRank is present iff Operator is between, and must then
// exceed Rank. A rule never expires on its own.
type Rule struct {
	ID            int64    `json:"id,string"`
	ServerID      string   `json:"serverId"`
	GroupName     string   `json:"groupName"`
	Operator      Operator `json:"operator"`
	Rank          int      `json:"rank"`
	SecondaryRank *int     `json:"secondaryRank,omitempty"`
	Roles         []string `json:"roles"`
}

// Matches evaluates the rule's predicate against a member's current rank.
// Rank 0 means "not a group member" and matches nothing except an explicit
// `= 0` rule.
func (r Rule) Matches(currentRank int) bool {
	if currentRank == 0 {
		return r.Operator == OpEq && r.Rank == 0
	}
	switch r.Operator {
	case OpEq:
		return currentRank == r.Rank
	case OpGte:
		return currentRank >= r.Rank
	case OpLte:
		return currentRank <= r.Rank
	case OpBetween:
		if r.SecondaryRank == nil {
			return false
		}
		return currentRank >= r.Rank && currentRank <= *r.SecondaryRank
	}
	return false
}

// RuleInput is one dashboard-supplied rule row. ID travels as a string to
// match the wire format; update rows must carry a numeric id.
type RuleInput struct {
	ID            *string  `json:"id" validate:"omitempty"`
	GroupName     string   `json:"groupName" validate:"required"`
	Operator      Operator `json:"operator" validate:"required"`
	Rank          int      `json:"rank" validate:"gte=0"`
	SecondaryRank *int     `json:"secondaryRank,omitempty" validate:"omitempty,gte=0"`
	Roles         []string `json:"roles" validate:"required,min=1,max=25,dive,required"`
}

// MutationBatch is the transient save payload, applied atomically per
// server: either every row commits or none do.
type MutationBatch struct {
	Insert []RuleInput `json:"insert" validate:"dive"`
	Update []RuleInput `json:"update" validate:"dive"`
	Delete []string    `json:"delete"`
}

// Empty reports whether the batch carries no work at all.
func (b MutationBatch) Empty() bool {
	return len(b.Insert) == 0 && len(b.Update) == 0 && len(b.Delete) == 0
}

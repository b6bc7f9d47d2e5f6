package engine

// Outcome is the named reason a request terminated.
type Outcome string

const (
	OutcomeRedirect      Outcome = "redirect"
	OutcomeInactive      Outcome = "safe_page_inactive"
	OutcomeWrongCountry  Outcome = "safe_page_wrong_country"
	OutcomeMissingParam  Outcome = "safe_page_missing_param"
	OutcomeWrongParamVal Outcome = "safe_page_wrong_param_val"
	OutcomeError         Outcome = "error"
)

// SafePage reports whether the outcome renders the disguised page.
func (o Outcome) SafePage() bool {
	return o != OutcomeRedirect
}

// RuleOp tags the rule variant.
type RuleOp int

const (
	OpExists RuleOp = iota
	OpEquals
)

// Rule is one per-parameter condition, parsed and validated once at
// snapshot build time.
type Rule struct {
	Op    RuleOp
	Key   string
	Value string // Equals only
}

// Campaign is an immutable snapshot view of one redirect configuration.
type Campaign struct {
	ID        int64
	DomainID  int64
	Name      string
	ParamKey  string
	ParamVal  string
	TargetURL string
	Active    bool
	Countries []string // allow-list; empty means unrestricted
	Rules     []Rule   // evaluated in stored order, short-circuit
}

// Domain is an immutable snapshot view of one active hostname.
type Domain struct {
	ID           int64
	Host         string
	SafeTemplate string
	SafeContent  map[string]string
	Campaigns    []Campaign // ascending id; first created wins ties
}

// Decision is the explicit result value passed between pipeline stages.
type Decision struct {
	Outcome     Outcome
	Campaign    *Campaign // nil only when no campaign matched at all
	Detail      string
	RedirectURL string // set only for OutcomeRedirect
}

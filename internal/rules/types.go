package rules

// Severity is the issue severity ladder, most severe first.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// Category groups rules by the kind of problem they detect
type Category string

const (
	CategoryPerformance Category = "PERFORMANCE"
	CategoryMemory      Category = "MEMORY"
	CategoryReliability Category = "RELIABILITY"
	CategoryStability   Category = "STABILITY"
	CategoryUX          Category = "UX"
)

// Field names a numeric snapshot field a rule reads
type Field string

const (
	FieldAvgTime Field = "avgTime"
	FieldMaxTime Field = "maxTime"
	FieldRenders Field = "renders"
	FieldMinTime Field = "minTime"
)

// Operator is a predicate comparison operator
type Operator string

const (
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "==="
)

// Direction is the slope sign a trend rule looks for
type Direction string

const (
	DirectionIncreasing Direction = "increasing"
	DirectionDecreasing Direction = "decreasing"
	DirectionStable     Direction = "stable"
)

// DefaultConfidenceThreshold applies to predicate rules that leave the threshold unset.
const DefaultConfidenceThreshold = 0.6

// Condition is the payload of a rule. The set of implementations is closed:
// Predicate, Regression and Trend.
type Condition interface {
	isCondition()
}

// Predicate compares a field of the current snapshot against a constant.
type Predicate struct {
	Field    Field    `yaml:"field" json:"field"`
	Operator Operator `yaml:"operator" json:"operator"`
	Value    float64  `yaml:"value" json:"value"`
}

// Regression compares the current snapshot against the previous one.
type Regression struct {
	Field      Field   `yaml:"field" json:"field"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
}

// Trend looks for a sustained slope over the retained history.
type Trend struct {
	Field     Field     `yaml:"field" json:"field"`
	Direction Direction `yaml:"direction" json:"direction"`
	Threshold float64   `yaml:"threshold" json:"threshold"` // percentage change
}

func (Predicate) isCondition()  {}
func (Regression) isCondition() {}
func (Trend) isCondition()      {}

// Rule is a compiled, immutable rule. A nil Condition never matches.
type Rule struct {
	ID                  string
	Category            Category
	BaseSeverity        Severity
	Condition           Condition
	ConfidenceThreshold float64
	MessageTemplate     string
	DocURL              string

	// Dominant rules short-circuit ordinary rules when they fire.
	Dominant bool
	// Hint rules are the only ones re-evaluated after a dominant rule fires.
	Hint bool
}

// Threshold returns the effective confidence threshold
func (r Rule) Threshold() float64 {
	if r.ConfidenceThreshold == 0 {
		return DefaultConfidenceThreshold
	}
	return r.ConfidenceThreshold
}

// Kind names the rule's condition kind, "none" for a malformed rule
func (r Rule) Kind() string {
	switch r.Condition.(type) {
	case Predicate:
		return "predicate"
	case Regression:
		return "regression"
	case Trend:
		return "trend"
	default:
		return "none"
	}
}

// Spec converts a compiled rule back into its file representation.
func (r Rule) Spec() RuleSpec {
	spec := RuleSpec{
		ID:                  r.ID,
		Category:            r.Category,
		BaseSeverity:        r.BaseSeverity,
		ConfidenceThreshold: r.ConfidenceThreshold,
		MessageTemplate:     r.MessageTemplate,
		DocURL:              r.DocURL,
		Dominant:            r.Dominant,
		Hint:                r.Hint,
	}
	switch c := r.Condition.(type) {
	case Predicate:
		spec.Predicate = &c
	case Regression:
		spec.Regression = &c
	case Trend:
		spec.Trend = &c
	}
	return spec
}

// RuleSet is the parsed rule file
type RuleSet struct {
	APIVersion string     `yaml:"apiVersion" json:"apiVersion"`
	Kind       string     `yaml:"kind" json:"kind"`
	Rules      []RuleSpec `yaml:"rules" json:"rules"`
}

// RuleSpec is a single rule as written in a rule file. Exactly one of
// Predicate, Regression and Trend must be set.
type RuleSpec struct {
	ID                  string      `yaml:"id" json:"id"`
	Category            Category    `yaml:"category" json:"category"`
	BaseSeverity        Severity    `yaml:"baseSeverity" json:"baseSeverity"`
	Predicate           *Predicate  `yaml:"predicate,omitempty" json:"predicate,omitempty"`
	Regression          *Regression `yaml:"regression,omitempty" json:"regression,omitempty"`
	Trend               *Trend      `yaml:"trend,omitempty" json:"trend,omitempty"`
	ConfidenceThreshold float64     `yaml:"confidenceThreshold,omitempty" json:"confidenceThreshold,omitempty"`
	MessageTemplate     string      `yaml:"messageTemplate" json:"messageTemplate"`
	MessageFields       []string    `yaml:"messageFields,omitempty" json:"messageFields,omitempty"`
	DocURL              string      `yaml:"docUrl,omitempty" json:"docUrl,omitempty"`
	Dominant            bool        `yaml:"dominant,omitempty" json:"dominant,omitempty"`
	Hint                bool        `yaml:"hint,omitempty" json:"hint,omitempty"`
}

// RuleSetWithFile pairs a rule set with its source file path
type RuleSetWithFile struct {
	RuleSet *RuleSet
	File    string
}

// ValidationError represents a validation error for a specific file
type ValidationError struct {
	File    string
	Path    string
	Message string
}

// Error implements the error interface
func (e ValidationError) Error() string {
	if e.Path != "" {
		return e.File + ": " + e.Path + ": " + e.Message
	}
	return e.File + ": " + e.Message
}

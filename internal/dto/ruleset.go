package dto

// RuleSetFile is the decoded shape of a rule file.
// It uses "mapstructure" tags so the generic YAML map can be decoded leniently.
type RuleSetFile struct {
	Domain string     `mapstructure:"domain"`
	Style  string     `mapstructure:"style"`
	Rules  []RuleSpec `mapstructure:"rules"`
}

// RuleSpec is one rule as written in a file.
type RuleSpec struct {
	Name string `mapstructure:"name"`
	// Query is either a kind string or a map with kind and predicates.
	Query any `mapstructure:"query"`
	// Where adds predicates to the query.
	Where         []PredicateSpec `mapstructure:"where"`
	Preconditions []PredicateSpec `mapstructure:"preconditions"`
	Priority      int             `mapstructure:"priority"`

	// Domain and Style override the file level constraint.
	Domain string `mapstructure:"domain"`
	Style  string `mapstructure:"style"`

	// Action is either the compact notation string or a list of ComponentSpec maps.
	Action any `mapstructure:"action"`
}

// QuerySpec is the map form of a query.
type QuerySpec struct {
	Kind       string          `mapstructure:"kind"`
	Predicates []PredicateSpec `mapstructure:"predicates"`
}

// PredicateSpec mirrors domain.Predicate.
type PredicateSpec struct {
	Field string `mapstructure:"field"`
	Op    string `mapstructure:"op"`
	Value string `mapstructure:"value"`
}

// ComponentSpec is the structured form of an action component. Exactly one of
// Text, Content, Attr, Node, Pause or Personality is expected.
type ComponentSpec struct {
	Text        string             `mapstructure:"text"`
	Content     bool               `mapstructure:"content"`
	Attr        string             `mapstructure:"attr"`
	Node        string             `mapstructure:"node"`
	Separator   string             `mapstructure:"separator"`
	Pause       float64            `mapstructure:"pause"`
	Personality map[string]float64 `mapstructure:"personality"`
	Prosody     map[string]float64 `mapstructure:"prosody"`
}

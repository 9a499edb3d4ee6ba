/*
Package mathspeak is a speech rule engine that turns classified math trees into spoken descriptions.

Rules are data. Each rule names a node kind, optional predicates, the dynamic constraint
(domain and style) it belongs to, and an action describing what to say. When a request
asks for a constraint that has no matching rule, the engine falls back through
(domain, default), (default, style) and finally the universal (default, default) set.

# Usage

	eng, err := mathspeak.New(mathspeak.WithStyle("verbose"))
	if err != nil {
		log.Fatal(err)
	}

	tree := domain.NewTree()
	frac := tree.Add(domain.KindFraction, "", "", nil)
	tree.AddChild(frac, domain.KindIdentifier, "", "a", nil)
	tree.AddChild(frac, domain.KindNumber, "", "2", nil)

	text, err := eng.Speak(ctx, tree)
	// "start fraction a over 2 end fraction"

Rule files are YAML and can be loaded with LoadRuleFiles. The built-in rule sets are
always loaded first unless WithoutBuiltinRules is given.
*/
package mathspeak

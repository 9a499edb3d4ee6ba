package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/aretw0/mathspeak/pkg/adapters/file"
	"github.com/aretw0/mathspeak/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fractionYAML = `
domain: default
style: default
rules:
  - name: fraction
    query: fraction
    action: '[t] "the fraction"; [n] child:0; [t] "over"; [n] child:1'
  - name: number
    query:
      kind: number
      predicates:
        - {field: content, op: exists}
    action:
      - content: true
  - name: big-number
    query: number
    where:
      - {field: children, value: 0}
    preconditions:
      - {field: attr.size, value: big}
    priority: 2
    style: verbose
    action:
      - personality: {pitch: 0.2}
      - content: true
        prosody: {rate: -0.1}
      - pause: 150
      - node: children
        separator: and
`

func TestParseRuleSet(t *testing.T) {
	rules, err := file.ParseRuleSet([]byte(fractionYAML), "fraction.yaml")
	require.NoError(t, err)
	require.Len(t, rules, 3)

	frac := rules[0]
	assert.Equal(t, "fraction", frac.Name)
	assert.Equal(t, domain.DefaultConstraint, frac.Constraint)
	assert.Equal(t, domain.KindFraction, frac.Query.Kind)
	require.Len(t, frac.Action, 4)
	assert.Equal(t, domain.Literal("over"), frac.Action[2])

	num := rules[1]
	require.Len(t, num.Query.Predicates, 1)
	assert.Equal(t, domain.OpExists, num.Query.Predicates[0].Op)
	assert.Equal(t, []domain.Component{domain.ContentOf()}, num.Action)

	big := rules[2]
	assert.Equal(t, domain.Constraint{Domain: "default", Style: "verbose"}, big.Constraint)
	assert.Equal(t, 2, big.Priority)
	assert.Equal(t, []domain.Predicate{{Field: "children", Value: "0"}}, big.Query.Predicates)
	assert.Equal(t, []domain.Predicate{{Field: "attr.size", Value: "big"}}, big.Preconditions)
	require.Len(t, big.Action, 4)
	assert.Equal(t, domain.Personality(domain.Prosody{domain.ProsodyPitch: 0.2}), big.Action[0])
	assert.Equal(t, -0.1, big.Action[1].Prosody[domain.ProsodyRate])
	assert.Equal(t, domain.Pause(150), big.Action[2])
	assert.Equal(t, domain.Children(), big.Action[3].Selector)
	assert.Equal(t, "and", big.Action[3].Separator)
}

func TestParseRuleSet_Errors(t *testing.T) {
	tests := map[string]string{
		"bad yaml":        "rules: [",
		"unknown key":     "rules:\n  - name: a\n    query: x\n    colour: red\n",
		"no query":        "rules:\n  - name: a\n    action: '[t] \"x\"'\n",
		"bad compact":     "rules:\n  - name: a\n    query: x\n    action: '[q] nope'\n",
		"two kinds":       "rules:\n  - name: a\n    query: x\n    action:\n      - {text: a, content: true}\n",
		"empty component": "rules:\n  - name: a\n    query: x\n    action:\n      - {}\n",
		"bad selector":    "rules:\n  - name: a\n    query: x\n    action:\n      - {node: cousin}\n",
		"pause prosody":   "rules:\n  - name: a\n    query: x\n    action:\n      - {pause: 10, prosody: {pitch: 1}}\n",
		"query type":      "rules:\n  - name: a\n    query: [x]\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := file.ParseRuleSet([]byte(src), "bad.yaml")
			assert.Error(t, err)
		})
	}
}

func TestParseRuleSet_Empty(t *testing.T) {
	rules, err := file.ParseRuleSet([]byte("# nothing here\n"), "empty.yaml")
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestLoader_FS(t *testing.T) {
	fsys := fstest.MapFS{
		"b/second.yaml": {Data: []byte("rules:\n  - name: two\n    query: number\n    action: '[t] \"two\"'\n")},
		"a.yml":         {Data: []byte("rules:\n  - name: one\n    query: number\n    action: '[t] \"one\"'\n")},
		"notes.txt":     {Data: []byte("ignored")},
	}
	l := file.NewFS(fsys)

	files, err := l.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.yml", "b/second.yaml"}, files)

	rules, err := l.LoadRules(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "one", rules[0].Name)
	assert.Equal(t, "two", rules[1].Name)
}

func TestLoader_CollectsErrorsAcrossFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"a.yaml": {Data: []byte("rules:\n  - name: a\n    action: '[t] \"x\"'\n")},
		"b.yaml": {Data: []byte("rules: [")},
	}
	_, err := file.NewFS(fsys).LoadRules(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidRuleBase)
	assert.Len(t, domain.RuleErrors(err), 2)
}

func TestLoader_Dir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fraction.yaml"), []byte(fractionYAML), 0o644))

	l, err := file.New(dir)
	require.NoError(t, err)
	rules, err := l.LoadRules(context.Background())
	require.NoError(t, err)
	assert.Len(t, rules, 3)

	_, err = file.New(filepath.Join(dir, "missing"))
	assert.Error(t, err)
	_, err = file.New(filepath.Join(dir, "fraction.yaml"))
	assert.Error(t, err)
}

func TestLoader_Watch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fractionYAML), 0o644))

	l, err := file.New(dir, file.WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := l.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(fractionYAML+"\n"), 0o644))

	select {
	case <-events:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a reload signal")
	}

	cancel()
	select {
	case _, ok := <-events:
		for ok {
			_, ok = <-events
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch channel should close after cancel")
	}
}

func TestLoader_WatchRequiresDir(t *testing.T) {
	_, err := file.NewFS(fstest.MapFS{}).Watch(context.Background())
	assert.Error(t, err)
}

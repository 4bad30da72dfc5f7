package inference

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb/truth"
)

// ruleFile is the TOML shape of a rule file:
//
//	[[rule]]
//	name = "friends-know"
//	# align = true        (default)
//
//	[[rule.when]]
//	subject = "$X"
//	type = "FRIENDS_WITH"
//	object = "$Y"
//	truth = "TRUE"
//	# min_weight = 0.5    (SUPERPOSITION patterns only)
//
//	[rule.then]
//	subject = "$X"
//	type = "KNOWS"
//	object = "$Y"
//	truth = "TRUE"
//	# weight = 0.8        (SUPERPOSITION conclusions only)
type ruleFile struct {
	Rule []ruleDecl `toml:"rule"`
}

type ruleDecl struct {
	Name  string        `toml:"name"`
	Align *bool         `toml:"align"`
	When  []patternDecl `toml:"when"`
	Then  *patternDecl  `toml:"then"`
}

type patternDecl struct {
	Subject   string   `toml:"subject"`
	Type      string   `toml:"type"`
	Object    string   `toml:"object"`
	Truth     string   `toml:"truth"`
	Weight    *float64 `toml:"weight"`
	MinWeight float64  `toml:"min_weight"`
}

// Load parses rules from TOML bytes. Every rule is validated; the first
// invalid rule fails the whole load.
func Load(data []byte) ([]Rule, error) {
	var file ruleFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "parsing rule file")
	}

	rules := make([]Rule, 0, len(file.Rule))
	for i, decl := range file.Rule {
		rule, err := buildRule(decl)
		if err != nil {
			return nil, errors.Wrapf(err, "rule %d", i+1)
		}
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// LoadFile reads one TOML rule file.
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading rule file %s", path)
	}
	rules, err := Load(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return rules, nil
}

// LoadDir reads every *.toml file in the directory, in name order so
// the combined rule order is stable.
func LoadDir(dir string) ([]Rule, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.toml"))
	if err != nil {
		return nil, errors.Wrapf(err, "listing rule files in %s", dir)
	}
	sort.Strings(paths)

	var rules []Rule
	for _, path := range paths {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		rules = append(rules, loaded...)
	}
	return rules, nil
}

func buildRule(decl ruleDecl) (Rule, error) {
	rule := Rule{
		Name:  decl.Name,
		Align: decl.Align == nil || *decl.Align,
	}
	for i, w := range decl.When {
		p, err := buildPattern(w)
		if err != nil {
			return Rule{}, errors.Wrapf(err, "when %d", i+1)
		}
		rule.When = append(rule.When, p)
	}
	if decl.Then == nil {
		return Rule{}, errors.NewStructural("missing [rule.then] table")
	}
	c, err := buildConclusion(*decl.Then)
	if err != nil {
		return Rule{}, errors.Wrap(err, "then")
	}
	rule.Then = c
	return rule, nil
}

func buildPattern(decl patternDecl) (Pattern, error) {
	state, err := truth.ParseState(decl.Truth)
	if err != nil {
		return Pattern{}, err
	}
	return Pattern{
		Subject:   ParseTerm(decl.Subject),
		Type:      ParseTerm(decl.Type),
		Object:    ParseTerm(decl.Object),
		Truth:     state,
		MinWeight: decl.MinWeight,
	}, nil
}

func buildConclusion(decl patternDecl) (Conclusion, error) {
	state, err := truth.ParseState(decl.Truth)
	if err != nil {
		return Conclusion{}, err
	}
	var v truth.Value
	switch state {
	case truth.StateSuperposition:
		if decl.Weight == nil {
			return Conclusion{}, errors.NewStructural("SUPERPOSITION conclusion needs a weight")
		}
		w, err := truth.ParseWeight(*decl.Weight)
		if err != nil {
			return Conclusion{}, err
		}
		v = truth.Superposed(w)
	case truth.StateTrue:
		v = truth.True
	case truth.StateFalse:
		v = truth.False
	default:
		v = truth.Unknown
	}
	return Conclusion{
		Subject: ParseTerm(decl.Subject),
		Type:    ParseTerm(decl.Type),
		Object:  ParseTerm(decl.Object),
		Value:   v,
	}, nil
}

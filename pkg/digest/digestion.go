package digest

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ChrisMcGann/DBSeek/pkg/core"
)

// Terminus selects which side of a rule match the protease cuts.
type Terminus string

const (
	// CleaveAfter cuts at the end of the match (C-terminal side, trypsin).
	CleaveAfter Terminus = "after"
	// CleaveBefore cuts at the start of the match (N-terminal side, Asp-N).
	CleaveBefore Terminus = "before"
)

// Rule is a cleavage rule: a residue pattern plus optional exceptions.
type Rule struct {
	Pattern string `mapstructure:"pattern" yaml:"pattern"`

	// SkipSuffix suppresses a cut when this residue immediately follows it.
	SkipSuffix string `mapstructure:"skip_suffix" yaml:"skip_suffix,omitempty"`

	// SkipPrefix suppresses a cut when this residue immediately precedes it.
	SkipPrefix string `mapstructure:"skip_prefix" yaml:"skip_prefix,omitempty"`

	Terminus Terminus `mapstructure:"terminus" yaml:"terminus"`
}

// Enzymes holds the named cleavage rules.
var Enzymes = map[string]Rule{
	"trypsin":      {Pattern: "[KR]", SkipSuffix: "P", Terminus: CleaveAfter},
	"trypsin/p":    {Pattern: "[KR]", Terminus: CleaveAfter},
	"lys-c":        {Pattern: "K", Terminus: CleaveAfter},
	"arg-c":        {Pattern: "R", SkipSuffix: "P", Terminus: CleaveAfter},
	"chymotrypsin": {Pattern: "[FWYL]", SkipSuffix: "P", Terminus: CleaveAfter},
	"glu-c":        {Pattern: "E", SkipSuffix: "P", Terminus: CleaveAfter},
	"asp-n":        {Pattern: "D", Terminus: CleaveBefore},
	"lys-n":        {Pattern: "K", Terminus: CleaveBefore},
}

// EnzymeNames returns the names of the built-in rules, sorted.
func EnzymeNames() []string {
	names := make([]string, 0, len(Enzymes))
	for name := range Enzymes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parameters configures a Digester.
type Parameters struct {
	// Enzyme names a built-in rule. When empty, Rule is used as given.
	Enzyme string `mapstructure:"enzyme" yaml:"enzyme,omitempty"`
	Rule   Rule   `mapstructure:"rule" yaml:"rule,omitempty"`

	MinLength          int `mapstructure:"min_length" yaml:"min_length"`
	MaxLength          int `mapstructure:"max_length" yaml:"max_length"`
	MaxMissedCleavages int `mapstructure:"max_missed_cleavages" yaml:"max_missed_cleavages"`
}

// DefaultParameters returns trypsin, lengths 6 to 20, no missed cleavages.
func DefaultParameters() Parameters {
	return Parameters{
		Enzyme:             "trypsin",
		MinLength:          6,
		MaxLength:          20,
		MaxMissedCleavages: 0,
	}
}

// ResolvedRule returns the rule selected by Enzyme, or Rule if Enzyme is empty.
func (p Parameters) ResolvedRule() (Rule, error) {
	if p.Enzyme == "" {
		return p.Rule, nil
	}
	rule, ok := Enzymes[strings.ToLower(p.Enzyme)]
	if !ok {
		return Rule{}, &core.ConfigurationError{
			Field:   "digestion.enzyme",
			Message: fmt.Sprintf("unknown enzyme %q (known: %s)", p.Enzyme, strings.Join(EnzymeNames(), ", ")),
		}
	}
	return rule, nil
}

// Validate checks the parameters and the resolved rule.
func (p Parameters) Validate() error {
	if p.MinLength < 1 {
		return &core.ConfigurationError{Field: "digestion.min_length", Message: "must be positive"}
	}
	if p.MaxLength < p.MinLength {
		return &core.ConfigurationError{
			Field:   "digestion.max_length",
			Message: fmt.Sprintf("must be at least min_length (%d), got %d", p.MinLength, p.MaxLength),
		}
	}
	if p.MaxMissedCleavages < 0 {
		return &core.ConfigurationError{Field: "digestion.max_missed_cleavages", Message: "must not be negative"}
	}
	rule, err := p.ResolvedRule()
	if err != nil {
		return err
	}
	_, err = compileRule(rule)
	return err
}

type compiledRule struct {
	re         *regexp.Regexp
	skipSuffix byte
	skipPrefix byte
	terminus   Terminus
}

func compileRule(rule Rule) (*compiledRule, error) {
	if rule.Pattern == "" {
		return nil, &core.ConfigurationError{Field: "digestion.rule.pattern", Message: "pattern is empty"}
	}
	re, err := regexp.Compile(rule.Pattern)
	if err != nil {
		return nil, &core.ConfigurationError{Field: "digestion.rule.pattern", Message: err.Error()}
	}
	if re.MatchString("") {
		return nil, &core.ConfigurationError{Field: "digestion.rule.pattern", Message: fmt.Sprintf("pattern %q matches the empty string", rule.Pattern)}
	}

	c := &compiledRule{re: re}
	switch rule.Terminus {
	case CleaveAfter, "":
		c.terminus = CleaveAfter
	case CleaveBefore:
		c.terminus = CleaveBefore
	default:
		return nil, &core.ConfigurationError{Field: "digestion.rule.terminus", Message: fmt.Sprintf("must be %q or %q, got %q", CleaveAfter, CleaveBefore, rule.Terminus)}
	}

	for _, ex := range []struct {
		field string
		value string
		dst   *byte
	}{
		{"digestion.rule.skip_suffix", rule.SkipSuffix, &c.skipSuffix},
		{"digestion.rule.skip_prefix", rule.SkipPrefix, &c.skipPrefix},
	} {
		switch len(ex.value) {
		case 0:
		case 1:
			*ex.dst = ex.value[0]
		default:
			return nil, &core.ConfigurationError{Field: ex.field, Message: fmt.Sprintf("must be a single residue, got %q", ex.value)}
		}
	}
	return c, nil
}

// Digester cuts sequences into candidate peptides. It is safe for
// concurrent use.
type Digester struct {
	params Parameters
	rule   *compiledRule
}

// NewDigester validates the parameters and compiles the rule.
func NewDigester(params Parameters) (*Digester, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	rule, err := params.ResolvedRule()
	if err != nil {
		return nil, err
	}
	compiled, err := compileRule(rule)
	if err != nil {
		return nil, err
	}
	return &Digester{params: params, rule: compiled}, nil
}

// Parameters returns the digester configuration.
func (d *Digester) Parameters() Parameters {
	return d.params
}

// CleavageSites partitions sequence into contiguous, non-empty segments
// bounded by rule breakpoints and the sequence ends.
func (d *Digester) CleavageSites(sequence string) []Range {
	var sites []Range
	left := 0
	for _, m := range d.rule.re.FindAllStringIndex(sequence, -1) {
		right := m[1]
		if d.rule.terminus == CleaveBefore {
			right = m[0]
		}

		if d.rule.skipSuffix != 0 && right < len(sequence) && sequence[right] == d.rule.skipSuffix {
			continue
		}
		if d.rule.skipPrefix != 0 && right > 0 && sequence[right-1] == d.rule.skipPrefix {
			continue
		}
		if right <= left {
			continue
		}
		sites = append(sites, Range{Start: left, End: right})
		left = right
	}
	if left < len(sequence) {
		sites = append(sites, Range{Start: left, End: len(sequence)})
	}
	return sites
}

// Digest enumerates every candidate spanning up to MaxMissedCleavages
// consecutive sites whose length is within [MinLength, MaxLength].
func (d *Digester) Digest(seq *Sequence) []CandidateSlice {
	sites := d.CleavageSites(seq.residues)

	var out []CandidateSlice
	for i := range sites {
		start := sites[i].Start
		for j := 0; j <= d.params.MaxMissedCleavages && i+j < len(sites); j++ {
			end := sites[i+j].End
			span := end - start
			if span < d.params.MinLength || span > d.params.MaxLength {
				continue
			}
			out = append(out, CandidateSlice{
				seq:     seq,
				rng:     Range{Start: start, End: end},
				marking: Target,
			})
		}
	}
	return out
}

// DigestAll digests every sequence on a pool of workers and concatenates
// the results in input order. workers <= 0 means runtime.NumCPU().
func (d *Digester) DigestAll(ctx context.Context, seqs []*Sequence, workers int) ([]CandidateSlice, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	perSeq := make([][]CandidateSlice, len(seqs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, seq := range seqs {
		i, seq := i, seq
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			perSeq[i] = d.Digest(seq)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("digesting %d sequences: %w", len(seqs), err)
	}

	total := 0
	for _, group := range perSeq {
		total += len(group)
	}
	out := make([]CandidateSlice, 0, total)
	for _, group := range perSeq {
		out = append(out, group...)
	}
	candidatesDigested.Add(float64(total))
	return out, nil
}

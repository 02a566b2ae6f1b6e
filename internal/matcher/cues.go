package matcher

import (
	"embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultCueVersion is the cue set used when none is configured.
const DefaultCueVersion = "v2"

//go:embed cues/*.yaml
var embeddedCues embed.FS

// MassCues is the vocabulary for focal-mass presence.
type MassCues struct {
	Negation      []string `yaml:"negation"`
	// PostNegation closes a statement that names the mass first. Empty
	// means the built-in list.
	PostNegation  []string `yaml:"post_negation"`
	Positive      []string `yaml:"positive"`
	GenericLesion []string `yaml:"generic_lesion"`
	Morphology    []string `yaml:"morphology"`
	Exclusions    []string `yaml:"exclusions"`
}

// CueSet is a versioned, YAML-declared vocabulary. Patterns are RE2 over
// folded text.
type CueSet struct {
	Version     string   `yaml:"version"`
	Description string   `yaml:"description"`
	Mass        MassCues `yaml:"mass"`
}

// DefaultCueSet loads one of the embedded versions.
func DefaultCueSet(version string) (*CueSet, error) {
	if version == "" {
		version = DefaultCueVersion
	}
	b, err := embeddedCues.ReadFile("cues/" + version + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown cue set version %q", version)
	}
	return ParseCueSet(b)
}

// LoadCueSet reads a cue set file from disk.
func LoadCueSet(path string) (*CueSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cue set: %w", err)
	}
	return ParseCueSet(b)
}

func ParseCueSet(b []byte) (*CueSet, error) {
	var c CueSet
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("decode cue set: %w", err)
	}
	if strings.TrimSpace(c.Version) == "" {
		return nil, fmt.Errorf("cue set has no version")
	}
	if len(c.Mass.Positive) == 0 || len(c.Mass.Negation) == 0 {
		return nil, fmt.Errorf("cue set %s: mass positive and negation cues are required", c.Version)
	}
	if _, err := c.compile(); err != nil {
		return nil, fmt.Errorf("cue set %s: %w", c.Version, err)
	}
	return &c, nil
}

type massPatterns struct {
	negated    *regexp.Regexp
	positive   *regexp.Regexp
	generic    *regexp.Regexp
	morphology *regexp.Regexp
	exclusions *regexp.Regexp
}

func (c *CueSet) compile() (massPatterns, error) {
	var p massPatterns
	var err error
	if p.positive, err = alternation(c.Mass.Positive); err != nil {
		return p, fmt.Errorf("positive: %w", err)
	}
	if p.generic, err = alternation(c.Mass.GenericLesion); err != nil {
		return p, fmt.Errorf("generic_lesion: %w", err)
	}
	if p.morphology, err = alternation(c.Mass.Morphology); err != nil {
		return p, fmt.Errorf("morphology: %w", err)
	}
	if p.exclusions, err = alternation(c.Mass.Exclusions); err != nil {
		return p, fmt.Errorf("exclusions: %w", err)
	}
	cues := append(append([]string(nil), c.Mass.Positive...), c.Mass.GenericLesion...)
	post := postNegWords
	if len(c.Mass.PostNegation) > 0 {
		post = strings.Join(c.Mass.PostNegation, "|")
	}
	neg := `(?:^|[^\p{L}])(?:` + negatedPattern(strings.Join(c.Mass.Negation, "|"), strings.Join(cues, "|"), post) + `)`
	if p.negated, err = regexp.Compile(neg); err != nil {
		return p, fmt.Errorf("negation: %w", err)
	}
	return p, nil
}

// alternation compiles entries into one left-anchored pattern. An empty list
// yields nil, which never matches.
func alternation(entries []string) (*regexp.Regexp, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	for _, e := range entries {
		if _, err := regexp.Compile(e); err != nil {
			return nil, fmt.Errorf("%q: %w", e, err)
		}
	}
	return regexp.Compile(`(?:^|[^\p{L}])(?:` + strings.Join(entries, "|") + `)`)
}

package speech

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Rules is the on-disk description of the transcript hygiene filter.
//
// Pattern matching is case-insensitive. A transcription is additionally
// dropped when it has at most ShortWords words and fewer than ShortChars
// characters; leaving both at zero disables the short check.
type Rules struct {
	Patterns   []Pattern `yaml:"patterns"`
	ShortWords int       `yaml:"short_words"`
	ShortChars int       `yaml:"short_chars"`
}

// Pattern is one blocklist predicate. Exactly one field is set.
type Pattern struct {
	Contains string `yaml:"contains,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	Suffix   string `yaml:"suffix,omitempty"`
	Equals   string `yaml:"equals,omitempty"`
}

// UnmarshalYAML implements yaml.Unmarshaler for Pattern. A bare scalar is
// shorthand for a contains match:
//
//	patterns:
//	  - "thanks for watching"
//	  - prefix: "♪"
func (p *Pattern) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		*p = Pattern{Contains: s}
		return nil
	}

	type plain Pattern
	var raw plain
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*p = Pattern(raw)
	return nil
}

// compile validates the pattern and returns its predicate over lowercased
// text.
func (p Pattern) compile() (func(string) bool, error) {
	set := 0
	for _, s := range []string{p.Contains, p.Prefix, p.Suffix, p.Equals} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("exactly one of contains, prefix, suffix, equals must be set")
	}

	switch {
	case p.Contains != "":
		needle := strings.ToLower(p.Contains)
		return func(s string) bool { return strings.Contains(s, needle) }, nil
	case p.Prefix != "":
		needle := strings.ToLower(p.Prefix)
		return func(s string) bool { return strings.HasPrefix(s, needle) }, nil
	case p.Suffix != "":
		needle := strings.ToLower(p.Suffix)
		return func(s string) bool { return strings.HasSuffix(s, needle) }, nil
	default:
		needle := strings.ToLower(p.Equals)
		return func(s string) bool { return s == needle }, nil
	}
}

// DefaultRules returns the built-in blocklist: phrases the transcription
// model is known to invent for silence, music, and video-outro audio.
func DefaultRules() Rules {
	return Rules{
		ShortWords: 2,
		ShortChars: 15,
		Patterns: []Pattern{
			{Contains: "www."},
			{Contains: ".com"},
			{Contains: ".org"},
			{Contains: ".net"},
			{Contains: "subscribe"},
			{Contains: "like and subscribe"},
			{Contains: "thanks for watching"},
			{Contains: "thank you for watching"},
			{Contains: "see you next time"},
			{Contains: "visit our website"},
			{Contains: "check out our"},
			{Contains: "[music]"},
			{Contains: "♪"},
			{Contains: "satsang"},
			{Contains: "mesmerism"},
			{Contains: "monastery"},
		},
	}
}

// ParseRules parses a YAML rules file.
func ParseRules(data []byte) (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("speech: parse rules: %w", err)
	}
	return r, nil
}

// LoadRules reads and parses the YAML rules file at path.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("speech: read rules: %w", err)
	}
	return ParseRules(data)
}

// Filter drops transcriptions that match a blocklist or are too short to
// be real speech.
type Filter struct {
	match      []func(string) bool
	shortWords int
	shortChars int
}

// NewFilter compiles rules into a Filter.
func NewFilter(rules Rules) (*Filter, error) {
	f := &Filter{
		shortWords: rules.ShortWords,
		shortChars: rules.ShortChars,
	}
	for i, p := range rules.Patterns {
		m, err := p.compile()
		if err != nil {
			return nil, fmt.Errorf("speech: pattern %d: %w", i, err)
		}
		f.match = append(f.match, m)
	}
	return f, nil
}

// DefaultFilter returns a Filter built from [DefaultRules].
func DefaultFilter() *Filter {
	f, err := NewFilter(DefaultRules())
	if err != nil {
		panic("speech: invalid default rules: " + err.Error())
	}
	return f
}

// Clean trims a raw transcription and reports whether it should be kept.
// Dropped text comes back as the empty string.
func (f *Filter) Clean(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	lower := strings.ToLower(text)
	for _, match := range f.match {
		if match(lower) {
			return "", false
		}
	}

	if f.shortWords > 0 && f.shortChars > 0 {
		words := len(strings.Fields(text))
		if words <= f.shortWords && utf8.RuneCountInString(text) < f.shortChars {
			return "", false
		}
	}
	return text, true
}

// Package intent routes a learner's utterance to one of a fixed set of
// conversational intents before any grading happens. The rule set is
// configuration data, not code: deployments can extend the pattern catalogue
// from a YAML file without touching the turn state machine.
package intent

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/antoniostano/beatrice/internal/phonics"
)

// Intent is the conversational meaning of one utterance. Derived per
// utterance and never persisted.
type Intent string

const (
	Spelling   Intent = "spelling"
	Definition Intent = "definition"
	Sentence   Intent = "sentence"
	Repeat     Intent = "repeat"
	Skip       Intent = "skip"
	OffTopic   Intent = "off_topic"
)

// Rule binds an intent to the regex patterns that trigger it. Rules are
// evaluated in declaration order; the first match wins.
type Rule struct {
	Intent   string   `yaml:"intent"`
	Patterns []string `yaml:"patterns"`
}

// RuleSet is the full classifier configuration.
type RuleSet struct {
	Rules            []Rule   `yaml:"rules"`
	OffTopicPatterns []string `yaml:"off_topic_patterns"`
	RedirectMessage  string   `yaml:"redirect_message"`
	// MaxSpellingWords is the utterance length above which the letter-likeness
	// heuristic kicks in: long transcripts that do not look like letter
	// spelling are treated as off-topic chatter.
	MaxSpellingWords int `yaml:"max_spelling_words"`
}

// DefaultRuleSet mirrors the built-in guardrail catalogue.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Rules: []Rule{
			{Intent: string(Definition), Patterns: []string{
				`\b(definition|meaning|what does it mean|what does that mean|what is that|what's that mean|explain|what does \w+ mean)\b`,
			}},
			{Intent: string(Sentence), Patterns: []string{
				`\b(use it in a sentence|sentence|example|use the word)\b`,
			}},
			{Intent: string(Repeat), Patterns: []string{
				`\b(repeat|say it again|say that again|one more time|say the word|what was the word|again|hear it again|tell me the word)\b`,
			}},
			{Intent: string(Skip), Patterns: []string{
				`\b(skip|next word|move on|pass|skip this|next one)\b`,
			}},
		},
		OffTopicPatterns: []string{
			`\b(what are|tell me|who is|where is|how do|can you|do you know` +
				`|play|watch|netflix|movie|game|song|music|youtube|story|joke` +
				`|weather|time|news|search|google|hey siri|alexa|okay google` +
				`|what is the|how old|how many|sing|dance|video|cartoon|pokemon` +
				`|minecraft|roblox|fortnite|chat|talk about|help me with)\b`,
		},
		RedirectMessage:  "I can only help with spelling practice! Try spelling the word, or say 'repeat', 'definition', or 'skip'.",
		MaxSpellingWords: 8,
	}
}

// LoadRuleSet reads a YAML rule file. Missing fields fall back to the
// defaults so a partial override file stays valid.
func LoadRuleSet(path string) (RuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("read intent rules: %w", err)
	}
	rs := DefaultRuleSet()
	if err := yaml.Unmarshal(raw, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("parse intent rules: %w", err)
	}
	if rs.MaxSpellingWords <= 0 {
		rs.MaxSpellingWords = DefaultRuleSet().MaxSpellingWords
	}
	if strings.TrimSpace(rs.RedirectMessage) == "" {
		rs.RedirectMessage = DefaultRuleSet().RedirectMessage
	}
	return rs, nil
}

// Classification is the classifier output: the intent plus, for off-topic
// utterances, the redirect line the pronouncer should speak.
type Classification struct {
	Intent   Intent
	Redirect string
}

type compiledRule struct {
	intent   Intent
	patterns []*regexp.Regexp
}

// Classifier matches utterances against a compiled rule set. Safe for
// concurrent use; read-only after construction.
type Classifier struct {
	rules            []compiledRule
	offTopic         []*regexp.Regexp
	redirect         string
	maxSpellingWords int
}

// NewClassifier compiles the rule set. Invalid patterns are a configuration
// error surfaced at startup, not at classification time.
func NewClassifier(rs RuleSet) (*Classifier, error) {
	c := &Classifier{
		redirect:         rs.RedirectMessage,
		maxSpellingWords: rs.MaxSpellingWords,
	}
	for _, rule := range rs.Rules {
		cr := compiledRule{intent: Intent(rule.Intent)}
		switch cr.intent {
		case Spelling, Definition, Sentence, Repeat, Skip, OffTopic:
		default:
			return nil, fmt.Errorf("unknown intent %q in rule set", rule.Intent)
		}
		for _, p := range rule.Patterns {
			re, err := regexp.Compile(`(?i)` + p)
			if err != nil {
				return nil, fmt.Errorf("intent %q pattern %q: %w", rule.Intent, p, err)
			}
			cr.patterns = append(cr.patterns, re)
		}
		c.rules = append(c.rules, cr)
	}
	for _, p := range rs.OffTopicPatterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("off-topic pattern %q: %w", p, err)
		}
		c.offTopic = append(c.offTopic, re)
	}
	return c, nil
}

// Classify inspects a transcript and returns the matched intent. It fails
// open: anything that does not clearly match a help, skip, or off-topic rule
// is a spelling attempt, because most turns are genuine attempts and
// classification must never block practice.
func (c *Classifier) Classify(transcript string) Classification {
	tx := strings.ToLower(strings.TrimSpace(transcript))
	if tx == "" {
		return Classification{Intent: Spelling}
	}

	for _, rule := range c.rules {
		for _, re := range rule.patterns {
			if re.MatchString(tx) {
				return Classification{Intent: rule.intent}
			}
		}
	}

	for _, re := range c.offTopic {
		if re.MatchString(tx) {
			return Classification{Intent: OffTopic, Redirect: c.redirect}
		}
	}

	// Long utterances that do not look like letter spelling are chatter.
	words := strings.Fields(tx)
	if len(words) > c.maxSpellingWords {
		letterLike := 0
		for _, w := range words {
			if phonics.IsLetterLike(w) {
				letterLike++
			}
		}
		if letterLike*2 < len(words) {
			return Classification{
				Intent:   OffTopic,
				Redirect: "That doesn't sound like spelling. Let's get back to it! Spell the word, or say 'repeat' or 'definition'.",
			}
		}
	}

	return Classification{Intent: Spelling}
}

// Package nlu turns free text into an intent and structured entities.
package nlu

import "strings"

// Intent represents the classified purpose of a message.
type Intent string

const (
	IntentPrice     Intent = "price"
	IntentBudget    Intent = "budget"
	IntentRecommend Intent = "recommend"
	IntentInfo      Intent = "info"
	IntentUnknown   Intent = "unknown"
)

// Intents lists every intent in classification priority order, followed by IntentUnknown.
var Intents = []Intent{IntentPrice, IntentBudget, IntentRecommend, IntentInfo, IntentUnknown}

type intentRule struct {
	intent   Intent
	patterns []string
}

// IntentClassifier classifies messages with ordered keyword rules.
// The first rule with a matching keyword wins.
type IntentClassifier struct {
	rules []intentRule
}

// NewIntentClassifier creates a new intent classifier.
func NewIntentClassifier() *IntentClassifier {
	return &IntentClassifier{
		rules: []intentRule{
			{intent: IntentPrice, patterns: []string{"price", "estimate"}},
			{intent: IntentBudget, patterns: []string{"under", "budget"}},
			{intent: IntentRecommend, patterns: []string{"recommend", "suggest"}},
			{intent: IntentInfo, patterns: []string{"info", "details", "specs", "tell me about"}},
		},
	}
}

// Classify returns exactly one intent for any input.
func (c *IntentClassifier) Classify(text string) Intent {
	q := strings.ToLower(text)

	for _, rule := range c.rules {
		for _, pattern := range rule.patterns {
			if strings.Contains(q, pattern) {
				return rule.intent
			}
		}
	}

	return IntentUnknown
}

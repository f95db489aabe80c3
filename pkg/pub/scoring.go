package pub

import "strings"

// highPriorityTypes earn a single +8 bonus; first matching pub type wins.
var highPriorityTypes = []string{
	"randomized controlled trial",
	"clinical trial",
	"systematic review",
	"meta-analysis",
}

// negativeTypes earn a single -8 penalty; first matching pub type wins.
var negativeTypes = []string{
	"letter",
	"comment",
	"editorial",
	"erratum",
	"corrigendum",
}

// Score computes the editorial score of a publication. Rules are additive
// and each appends a reason; reason order follows rule declaration order
// so output is reproducible.
func Score(p *Publication) ScoreResult {
	text := p.Text()
	titleLower := strings.ToLower(p.Title)

	typesLower := make([]string, len(p.PubTypes))
	for i, pt := range p.PubTypes {
		typesLower[i] = strings.ToLower(pt)
	}

	score := 0
	var reasons []string
	add := func(points int, reason string) {
		score += points
		reasons = append(reasons, reason)
	}

	applyTitleRules(titleLower, add)
	applyPubTypeRules(typesLower, add)
	applyTextRules(text, add)

	high := score >= 8
	for _, r := range reasons {
		if strings.Contains(r, "high-priority") {
			high = true
			break
		}
	}

	return ScoreResult{Score: score, Reasons: reasons, HighPriority: high}
}

func applyTitleRules(titleLower string, add func(int, string)) {
	if strings.Contains(titleLower, "letter to the editor") {
		add(-6, "letter")
	}
	if strings.Contains(titleLower, "corrigendum") {
		add(-6, "erratum")
	}
	if strings.Contains(titleLower, "published erratum") {
		add(-6, "erratum")
	}
}

func applyPubTypeRules(typesLower []string, add func(int, string)) {
	for _, pt := range typesLower {
		if containsAny(pt, highPriorityTypes) {
			add(+8, "high-priority: "+pt)
			break
		}
	}

	// Plain reviews get a smaller bonus, unless a systematic review or
	// meta-analysis type already took the high-priority bonus.
	systematic := false
	for _, pt := range typesLower {
		if strings.Contains(pt, "systematic review") || strings.Contains(pt, "meta-analysis") {
			systematic = true
			break
		}
	}
	if !systematic {
		for _, pt := range typesLower {
			if strings.Contains(pt, "review") {
				add(+5, "review")
				break
			}
		}
	}

	for _, pt := range typesLower {
		if containsAny(pt, negativeTypes) {
			add(-8, "negative-type: "+pt)
			break
		}
	}

	for _, pt := range typesLower {
		if strings.Contains(pt, "preprint") {
			add(-3, "preprint")
			break
		}
	}
}

func applyTextRules(text string, add func(int, string)) {
	if strings.Contains(text, "mouse") || strings.Contains(text, "mice") {
		add(-4, "animal study")
	}
	if strings.Contains(text, "in vitro") {
		add(-4, "in vitro")
	}
	if strings.Contains(text, "randomized") || strings.Contains(text, "randomised") {
		add(+5, "randomized trial")
	}
	if strings.Contains(text, "clinical trial") {
		add(+5, "clinical trial")
	}
	if strings.Contains(text, "pilot study") {
		add(+3, "pilot study")
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ClassifyBucket assigns a publication to one of the routing buckets:
// "review", "trial" or "study".
func ClassifyBucket(p *Publication) string {
	text := p.Text()

	if strings.Contains(text, "systematic review") ||
		strings.Contains(text, "meta-analysis") ||
		strings.Contains(text, "meta analysis") ||
		strings.Contains(text, "review") {
		return "review"
	}

	if strings.Contains(text, "trial") ||
		strings.Contains(text, "randomized") ||
		strings.Contains(text, "randomised") {
		return "trial"
	}

	return "study"
}

// DetectRegion reports "asia" when an Asian country is mentioned in the
// title or abstract, otherwise an empty string.
func DetectRegion(p *Publication) string {
	text := p.Text()
	for _, country := range []string{"japan", "korea", "china", "india"} {
		if strings.Contains(text, country) {
			return "asia"
		}
	}
	return ""
}

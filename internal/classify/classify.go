// Package classify implements the callsign category matching engine.
package classify

import (
	"log/slog"
	"regexp"

	"towerwatch/internal/model"
)

// RuleSet is a compiled pattern set ready for matching.
type RuleSet struct {
	main  []*regexp.Regexp
	above []*regexp.Regexp
	below []*regexp.Regexp
}

// Membership reports which categories a callsign belongs to. Categories
// are independent: a callsign may match zero, one, or several.
type Membership struct {
	Main  bool
	Above bool
	Below bool
}

// Compile builds a RuleSet from a pattern set. Matching is case-sensitive
// and full-string. A pattern that fails to compile is logged and skipped;
// the remaining patterns in its category stay in effect.
func Compile(ps model.PatternSet, log *slog.Logger) *RuleSet {
	return &RuleSet{
		main:  compileList("main", ps.Main, log),
		above: compileList("supporting_above", ps.SupportingAbove, log),
		below: compileList("supporting_below", ps.SupportingBelow, log),
	}
}

func compileList(category string, patterns []string, log *slog.Logger) []*regexp.Regexp {
	var res []*regexp.Regexp
	for _, p := range patterns {
		re, err := regexp.Compile("^(?:" + p + ")$")
		if err != nil {
			log.Warn("skipping invalid pattern", "category", category, "pattern", p, "error", err)
			continue
		}
		res = append(res, re)
	}
	return res
}

// Classify matches a callsign against every category's pattern list.
func (rs *RuleSet) Classify(callsign string) Membership {
	return Membership{
		Main:  matchAny(rs.main, callsign),
		Above: matchAny(rs.above, callsign),
		Below: matchAny(rs.below, callsign),
	}
}

func matchAny(res []*regexp.Regexp, callsign string) bool {
	for _, re := range res {
		if re.MatchString(callsign) {
			return true
		}
	}
	return false
}

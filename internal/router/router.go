// Package router classifies a natural-language query into a retrieval
// route, target object, and metric (spec §4.8). It never executes a query;
// internal/retrieval consumes its output.
package router

import (
	"regexp"
	"strconv"
	"strings"
)

// Route selects which retrieval path handles the query.
type Route string

const (
	RouteDirect Route = "direct"
	RouteHybrid Route = "hybrid"
	RouteVector Route = "vector"
)

// Object names what kind of record the query is about.
type Object string

const (
	ObjectPRs      Object = "prs"
	ObjectFeatures Object = "features"
	ObjectFiles    Object = "files"
)

// Metric names the aggregation or ranking the query wants.
type Metric string

const (
	MetricList     Metric = "list"
	MetricTop      Metric = "top"
	MetricCount    Metric = "count"
	MetricRiskiest Metric = "riskiest"
	MetricLargest  Metric = "largest"
	MetricExplain  Metric = "explain"
)

// Classification is the router's full output record (spec §4.8).
type Classification struct {
	Route         Route
	Object        Object
	Metric        Metric
	SemanticTerms []string
	Limit         int
	PRNumber      int
	Author        string
	SpecificFile  string
}

var (
	directCueRe    = regexp.MustCompile(`(?i)\b(count|top|most|list|merged)\b|features? shipped|shipped features?|what (was )?shipped|how many|number of|total\b`)
	fileChangedRe  = regexp.MustCompile(`(?i)file that changed most`)
	prNumberRe     = regexp.MustCompile(`(?i)\bpr\s*#?(\d+)\b`)
	changesByRe    = regexp.MustCompile(`(?i)changes? (made|done) by\s+([\w.-]+)`)
	byRe           = regexp.MustCompile(`(?i)\bby\s+([\w.-]+)\b`)
	largestRe      = regexp.MustCompile(`(?i)\b(largest|biggest|most changes)\b`)
	riskiestRe     = regexp.MustCompile(`(?i)\b(riskiest|high risk|most risky)\b`)
	topNRe         = regexp.MustCompile(`(?i)\btop\s+(\d+)\b`)

	specificFileRe = regexp.MustCompile(`(?i)show changes? in\s+(\S+)|changes? to\s+(\S+)|file\s+(\S+\.\w+)|(\S+\.\w+)`)

	vectorCueRe = regexp.MustCompile(`(?i)\b(why|explain|how does|what is|risky because|show me|tell me|describe|understand|streaming features|complex changes|impact of)\b`)

	featureObjectRe = regexp.MustCompile(`(?i)\bfeatures?\b`)
)

// topicCues extract hybrid-route semantic terms (spec §4.8 rule 2).
var topicCues = []struct {
	name string
	re   *regexp.Regexp
}{
	{"authentication", regexp.MustCompile(`(?i)\bauth(entication|orization)?\b`)},
	{"payment", regexp.MustCompile(`(?i)\b(payment|billing|invoice)\b`)},
	{"pipeline", regexp.MustCompile(`(?i)\b(pipeline|ci|cd|deploy)\b`)},
	{"security", regexp.MustCompile(`(?i)\b(security|vulnerability|risk)\b`)},
	{"database", regexp.MustCompile(`(?i)\b(database|sql|query)\b`)},
	{"api", regexp.MustCompile(`(?i)\b(api|endpoint|route)\b`)},
	{"frontend", regexp.MustCompile(`(?i)\b(ui|ux|frontend|backend)\b`)},
	{"testing", regexp.MustCompile(`(?i)\btest(ing|ed)?\b`)},
	{"performance", regexp.MustCompile(`(?i)\b(performance|optimization|speed)\b`)},
	{"bugfix", regexp.MustCompile(`(?i)\b(error|bug|fix|issue)\b`)},
}

// Classify implements spec §4.8's ordered rule list: first match wins.
func Classify(query string) Classification {
	if directCueRe.MatchString(query) || fileChangedRe.MatchString(query) || prNumberRe.MatchString(query) ||
		changesByRe.MatchString(query) || largestRe.MatchString(query) || riskiestRe.MatchString(query) {
		return classifyDirect(query)
	}

	if terms := matchTopics(query); len(terms) > 0 {
		if file, ok := detectSpecificFile(query); ok {
			return Classification{Route: RouteHybrid, Object: ObjectFiles, SpecificFile: file, SemanticTerms: terms}
		}
		return Classification{Route: RouteHybrid, Object: ObjectPRs, Metric: MetricList, SemanticTerms: terms}
	}

	if file, ok := detectSpecificFile(query); ok {
		return Classification{Route: RouteHybrid, Object: ObjectFiles, SpecificFile: file}
	}

	if vectorCueRe.MatchString(query) {
		return Classification{Route: RouteVector, Object: ObjectPRs, Metric: MetricExplain, SemanticTerms: []string{query}}
	}

	return Classification{Route: RouteHybrid, Object: ObjectPRs, Metric: MetricList, SemanticTerms: []string{query}}
}

func classifyDirect(query string) Classification {
	c := Classification{Route: RouteDirect, Object: ObjectPRs, Metric: MetricList}

	if fileChangedRe.MatchString(query) {
		c.Object = ObjectFiles
		c.Metric = MetricLargest
	}
	if riskiestRe.MatchString(query) {
		c.Metric = MetricRiskiest
	}
	if largestRe.MatchString(query) {
		c.Metric = MetricLargest
	}
	if featureObjectRe.MatchString(query) {
		c.Object = ObjectFeatures
	}
	if strings.Contains(strings.ToLower(query), "how many") || strings.Contains(strings.ToLower(query), "number of") || strings.Contains(strings.ToLower(query), "total") {
		c.Metric = MetricCount
	}

	if m := topNRe.FindStringSubmatch(query); m != nil {
		if c.Metric == MetricList {
			c.Metric = MetricTop
		}
		c.Limit, _ = strconv.Atoi(m[1])
	}

	if m := prNumberRe.FindStringSubmatch(query); m != nil {
		c.PRNumber, _ = strconv.Atoi(m[1])
	}

	if m := changesByRe.FindStringSubmatch(query); m != nil {
		c.Author = m[2]
	} else if m := byRe.FindStringSubmatch(query); m != nil {
		c.Author = m[1]
	}

	return c
}

func matchTopics(query string) []string {
	var terms []string
	for _, cue := range topicCues {
		if cue.re.MatchString(query) {
			terms = append(terms, cue.name)
		}
	}
	return terms
}

// detectSpecificFile runs before the vector route per spec §4.8 rule 3.
func detectSpecificFile(query string) (string, bool) {
	m := specificFileRe.FindStringSubmatch(query)
	if m == nil {
		return "", false
	}
	for _, g := range m[1:] {
		if g != "" {
			return g, true
		}
	}
	return "", false
}

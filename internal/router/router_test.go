package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestClassify_DirectCount covers direct-route count classification.
func TestClassify_DirectCount(t *testing.T) {
	c := Classify("how many PRs merged this week")
	assert.Equal(t, RouteDirect, c.Route)
	assert.Equal(t, MetricCount, c.Metric)
}

// TestClassify_PRNumber covers the pr_number sub-classification.
func TestClassify_PRNumber(t *testing.T) {
	c := Classify("PR #42")
	assert.Equal(t, RouteDirect, c.Route)
	assert.Equal(t, 42, c.PRNumber)
}

// TestClassify_TopNKeepsRiskiestMetric asserts "top N" records Limit and
// keeps a metric an earlier cue (riskiest, largest, ...) already set
// (spec.md Scenario 2: "Top 5 riskiest PRs" -> metric:riskiest, limit:5).
func TestClassify_TopNKeepsRiskiestMetric(t *testing.T) {
	c := Classify("top 5 riskiest PRs")
	assert.Equal(t, RouteDirect, c.Route)
	assert.Equal(t, MetricRiskiest, c.Metric)
	assert.Equal(t, 5, c.Limit)
}

// TestClassify_TopNAlone asserts a bare "top N" with no other metric cue
// does classify as MetricTop.
func TestClassify_TopNAlone(t *testing.T) {
	c := Classify("top 10 PRs")
	assert.Equal(t, RouteDirect, c.Route)
	assert.Equal(t, MetricTop, c.Metric)
	assert.Equal(t, 10, c.Limit)
}

// TestClassify_ChangesByAuthor covers the direct-route author cue.
func TestClassify_ChangesByAuthor(t *testing.T) {
	c := Classify("changes made by alice")
	assert.Equal(t, RouteDirect, c.Route)
	assert.Equal(t, "alice", c.Author)
}

// TestClassify_ShippedWithoutFeatureWordStaysPRs asserts bare "shipped" does
// not force object:features (spec.md Scenario 1: "What was shipped in the
// last two weeks?" must classify object:prs).
func TestClassify_ShippedWithoutFeatureWordStaysPRs(t *testing.T) {
	c := Classify("what was shipped in the last two weeks")
	assert.Equal(t, RouteDirect, c.Route)
	assert.Equal(t, ObjectPRs, c.Object)
}

// TestClassify_FeatureWordSetsFeatureObject asserts the documented
// feature-cue vocabulary (not bare "shipped") still selects object:features.
func TestClassify_FeatureWordSetsFeatureObject(t *testing.T) {
	c := Classify("what features shipped this month")
	assert.Equal(t, RouteDirect, c.Route)
	assert.Equal(t, ObjectFeatures, c.Object)
}

// TestClassify_HybridTopic covers rule 2, a topic cue with no direct-route
// signal falling through to hybrid with semantic terms attached.
func TestClassify_HybridTopic(t *testing.T) {
	c := Classify("authentication changes this month")
	assert.Equal(t, RouteHybrid, c.Route)
	assert.Equal(t, ObjectPRs, c.Object)
	assert.Contains(t, c.SemanticTerms, "authentication")
}

// TestClassify_VectorExplain covers rule 4, an explanation cue with no
// direct or hybrid-topic match.
func TestClassify_VectorExplain(t *testing.T) {
	c := Classify("why is this risky")
	assert.Equal(t, RouteVector, c.Route)
	assert.Equal(t, MetricExplain, c.Metric)
}

// TestClassify_DefaultHybridFallback covers rule 5: no cue matches at all.
func TestClassify_DefaultHybridFallback(t *testing.T) {
	c := Classify("summarize the repo")
	assert.Equal(t, RouteHybrid, c.Route)
	assert.Equal(t, ObjectPRs, c.Object)
	assert.Equal(t, MetricList, c.Metric)
}

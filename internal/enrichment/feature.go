package enrichment

import "strings"

var allowLabels = map[string]bool{
	"feature": true, "enhancement": true, "new-feature": true,
	"type:feature": true, "type:enhancement": true, "improvement": true,
	"addition": true, "feat": true,
}

var excludeLabels = map[string]bool{
	"bug": true, "bugfix": true, "fix": true, "hotfix": true,
	"regression": true, "docs": true, "documentation": true, "refactor": true,
	"cleanup": true, "tech-debt": true, "chore": true, "maintenance": true,
	"ci": true, "build": true, "infra": true, "test": true, "tests": true,
	"qa": true, "revert": true, "security-fix": true, "backport": true,
}

// ClassifyFeature implements the label-based feature-classification rule
// (spec §4.3): a PR is a feature iff it carries any allow-label, or it is
// merged, carries no exclude-label, and is not documentation-only. The
// returned string is title when classified as a feature, empty otherwise.
func ClassifyFeature(title string, labels []string, isMerged bool, allDocsOnly bool) string {
	normalized := make([]string, len(labels))
	for i, l := range labels {
		normalized[i] = strings.ToLower(l)
	}

	for _, l := range normalized {
		if allowLabels[l] {
			return title
		}
	}

	if !isMerged {
		return ""
	}
	for _, l := range normalized {
		if excludeLabels[l] {
			return ""
		}
	}
	if allDocsOnly {
		return ""
	}
	return title
}

package enrichment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyCommenterRole(t *testing.T) {
	assert.Equal(t, RoleBot, ClassifyCommenterRole("dependabot[bot]", "octocat", nil, true))
	assert.Equal(t, RoleOwner, ClassifyCommenterRole("octocat", "octocat", nil, false))
	assert.Equal(t, RoleCollaborator, ClassifyCommenterRole("alice", "octocat", []string{"alice"}, false))
	assert.Equal(t, RoleContributor, ClassifyCommenterRole("random-dev", "octocat", []string{"alice"}, false))
}

func TestEvidenceBoost_CapsAtPointNineEight(t *testing.T) {
	boost := EvidenceBoost(RoleOwner, 0.95)
	assert.Equal(t, 0.98, boost)
}

func TestEvidenceBoost_PerRoleDelta(t *testing.T) {
	assert.InDelta(t, 0.10, EvidenceBoost(RoleOwner, 0), 0.0001)
	assert.InDelta(t, 0.08, EvidenceBoost(RoleCollaborator, 0), 0.0001)
	assert.InDelta(t, 0.05, EvidenceBoost(RoleBot, 0), 0.0001)
	assert.InDelta(t, 0.03, EvidenceBoost(RoleContributor, 0), 0.0001)
}

func TestLabelTrust_NoCommentersIsZero(t *testing.T) {
	assert.Equal(t, 0.0, LabelTrust(nil, "octocat", nil))
}

func TestLabelTrust_OwnerAndCollaboratorAccumulate(t *testing.T) {
	commenters := []CommenterIdentity{
		{Author: "octocat"},
		{Author: "alice"},
	}
	trust := LabelTrust(commenters, "octocat", []string{"alice"})
	assert.InDelta(t, 0.18, trust, 0.0001)
}

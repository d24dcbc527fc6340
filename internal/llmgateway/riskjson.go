package llmgateway

import (
	"encoding/json"
	"regexp"
	"strings"
)

// RiskAssessment is the JSON shape the risk-scoring prompt must return.
type RiskAssessment struct {
	FilePath      string   `json:"file_path"`
	RiskScoreFile float64  `json:"risk_score_file"`
	HighRiskFlag  bool     `json:"high_risk_flag"`
	Reasons       []string `json:"reasons"`
	Confidence    float64  `json:"confidence"`
}

var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// ParseRiskAssessment implements the three-step recovery contract:
// strip code-fences, attempt a full parse, then fall back to extracting
// the first {...} block. Persistent failure yields a zero assessment
// whose reasons explain the parse error rather than an error return, since
// the caller (enrichment engine) must not abort the file on a bad LLM reply.
func ParseRiskAssessment(filePath, raw string) RiskAssessment {
	cleaned := stripFences(raw)

	var assessment RiskAssessment
	if err := json.Unmarshal([]byte(cleaned), &assessment); err == nil {
		return assessment
	}

	if block := jsonBlockRe.FindString(cleaned); block != "" {
		if err := json.Unmarshal([]byte(block), &assessment); err == nil {
			return assessment
		}
	}

	return RiskAssessment{
		FilePath:      filePath,
		RiskScoreFile: 0,
		HighRiskFlag:  false,
		Reasons:       []string{"risk assessment parse error: malformed LLM JSON response"},
		Confidence:    0,
	}
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

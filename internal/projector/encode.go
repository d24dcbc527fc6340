package projector

import (
	"encoding/json"

	"github.com/riskline/riskline/internal/mart"
	"github.com/riskline/riskline/internal/types"
)

// encodeLabels/encodeStrings/encodeRiskyFiles serialize the list-valued
// VS-PR fields into the JSON text columns repo_prs stores them as; the mart
// schema keeps these as opaque JSON rather than normalizing into child
// tables, matching how the vector store already holds them.
func encodeLabels(labels []types.Label) string {
	b, err := json.Marshal(labels)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func encodeStrings(ss []string) string {
	if ss == nil {
		ss = []string{}
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func encodeRiskyFiles(rf []mart.RiskyFile) string {
	if rf == nil {
		rf = []mart.RiskyFile{}
	}
	b, err := json.Marshal(rf)
	if err != nil {
		return "[]"
	}
	return string(b)
}

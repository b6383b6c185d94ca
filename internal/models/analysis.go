package models

// LegalAnalysis holds the structured facts pulled out of a filing's text.
// Every field is optional; the model leaves out what it cannot find.
type LegalAnalysis struct {
	DocumentType string   `firestore:"documentType,omitempty" json:"documentType,omitempty"`
	Location     string   `firestore:"location,omitempty" json:"location,omitempty"`
	FilingDate   string   `firestore:"filingDate,omitempty" json:"filingDate,omitempty"`
	CaseNumber   string   `firestore:"caseNumber,omitempty" json:"caseNumber,omitempty"`
	JudgeName    string   `firestore:"judgeName,omitempty" json:"judgeName,omitempty"`
	Plaintiffs   []string `firestore:"plaintiffs,omitempty" json:"plaintiffs,omitempty"`
	Defendants   []string `firestore:"defendants,omitempty" json:"defendants,omitempty"`
	Claimants    []string `firestore:"claimants,omitempty" json:"claimants,omitempty"`
	Amounts      []string `firestore:"amounts,omitempty" json:"amounts,omitempty"`
	Summary      string   `firestore:"summary,omitempty" json:"summary,omitempty"`
}

// IsEmpty reports whether the analysis carries no information at all.
func (a *LegalAnalysis) IsEmpty() bool {
	if a == nil {
		return true
	}
	return a.DocumentType == "" && a.Location == "" && a.FilingDate == "" &&
		a.CaseNumber == "" && a.JudgeName == "" && a.Summary == "" &&
		len(a.Plaintiffs) == 0 && len(a.Defendants) == 0 &&
		len(a.Claimants) == 0 && len(a.Amounts) == 0
}

package entity

import "github.com/mentionlab/visibility-engine/internal/model"

// Validate reports whether the document can be submitted: labels and
// descriptions must both be non-empty and carry an "en" entry. Callers
// must not hand a document that fails this check to the publishing
// client.
func Validate(doc model.EntityDocument) bool {
	if len(doc.Labels) == 0 || len(doc.Descriptions) == 0 {
		return false
	}
	return doc.Labels["en"].Value != "" && doc.Descriptions["en"].Value != ""
}

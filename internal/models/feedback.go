// internal/models/feedback.go
package models

import (
	"fmt"
	"time"
)

// Closed feedback enums. An explicit endLoop must carry one value from each
// set; auto-closed loops carry no feedback at all.
var (
	FeedbackRatings     = []string{"great", "ok", "bad"}
	FeedbackAttendances = []string{"allPresent", "someMissing", "nobodyCame"}
	FeedbackSafeties    = []string{"verySafe", "okay", "uneasy"}
	FeedbackFollowUps   = []string{"again", "maybe", "no"}
)

// Feedback is the owner's mandatory report on an explicitly ended loop.
type Feedback struct {
	Rating      string    `json:"rating"`
	Attendance  string    `json:"attendance"`
	Safety      string    `json:"safety"`
	FollowUp    string    `json:"followUp"`
	Note        string    `json:"note,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
	SubmittedBy string    `json:"submittedBy,omitempty"`
}

// Validate checks every enum field against its closed set.
func (f *Feedback) Validate() error {
	if err := oneOf("rating", f.Rating, FeedbackRatings); err != nil {
		return err
	}
	if err := oneOf("attendance", f.Attendance, FeedbackAttendances); err != nil {
		return err
	}
	if err := oneOf("safety", f.Safety, FeedbackSafeties); err != nil {
		return err
	}
	return oneOf("followUp", f.FollowUp, FeedbackFollowUps)
}

func oneOf(field, value string, allowed []string) error {
	for _, v := range allowed {
		if value == v {
			return nil
		}
	}
	return fmt.Errorf("feedback %s must be one of %v, got %q", field, allowed, value)
}

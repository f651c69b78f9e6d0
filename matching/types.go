package matching

import "fmt"

// JobListing is a stored job posting. The title doubles as the record id, so
// submitting a second job with the same title overwrites the first.
type JobListing struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// CompositeText is the text the listing's embedding is derived from.
func (j JobListing) CompositeText() string {
	return j.Title + " " + j.Description
}

// Display flattens the listing for recommendation output.
func (j JobListing) Display() string {
	return j.Title + ": " + j.Description
}

// UserProfile is a job seeker profile. Name is the record id. Text is the
// full-text composite the embedding is derived from; when empty it is
// synthesized from the structured fields.
type UserProfile struct {
	Name                string `json:"name"`
	Education           string `json:"education"`
	WorkExperience      string `json:"work_experience"`
	VolunteerExperience string `json:"volunteer_experience"`
	Skills              string `json:"skills"`
	Interests           string `json:"interests"`
	Motivation          string `json:"motivation"`
	IndustryInterest    string `json:"industry_interest"`
	Text                string `json:"text"`
}

// ComposeText returns Text, synthesizing the labeled composite from the
// structured fields when it is absent.
func (p UserProfile) ComposeText() string {
	if p.Text != "" {
		return p.Text
	}
	return fmt.Sprintf(
		"Name: %s, Education: %s, Work Experience: %s, Volunteer Experience: %s, "+
			"Skills: %s, Interests: %s, Motivation: %s, Industry Interest: %s",
		p.Name, p.Education, p.WorkExperience, p.VolunteerExperience,
		p.Skills, p.Interests, p.Motivation, p.IndustryInterest,
	)
}

// JobSubmission is one item of a batch ingestion request.
type JobSubmission struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// BatchResult reports the outcome of one batch item.
type BatchResult struct {
	Title string `json:"title"`
	Err   error  `json:"-"`
}

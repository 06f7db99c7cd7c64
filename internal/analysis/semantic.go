package analysis

import (
	"fmt"
	"time"

	"github.com/influencer-lens/backend/internal/content"
)

type SemanticResult struct {
	VideoID    string `json:"video_id"`
	Influencer string `json:"influencer"`
	Platform   string `json:"platform"`

	MainTopic     string   `json:"main_topic"`
	Subtopics     []string `json:"subtopics"`
	ContentType   string   `json:"content_type"`
	ContentFormat string   `json:"content_format"`

	NJRelevanceScore     float64  `json:"nj_relevance_score"`
	NJLocationsMentioned []string `json:"nj_locations_mentioned"`
	NJIssuesMentioned    []string `json:"nj_issues_mentioned"`
	LocalVsUniversal     string   `json:"local_vs_universal"`

	KeyMessages    []string `json:"key_messages"`
	CallToAction   *string  `json:"call_to_action"`
	NarrativeFrame string   `json:"narrative_frame"`
	Tone           string   `json:"tone"`

	TargetAudience   string   `json:"target_audience"`
	AssumedKnowledge string   `json:"assumed_knowledge"`
	EngagementHooks  []string `json:"engagement_hooks"`

	PeopleMentioned        []string `json:"people_mentioned"`
	OrganizationsMentioned []string `json:"organizations_mentioned"`
	BrandsMentioned        []string `json:"brands_mentioned"`
	OtherCreatorsMentioned []string `json:"other_creators_mentioned"`

	ProductionQuality  string  `json:"production_quality"`
	OriginalityScore   float64 `json:"originality_score"`
	AnalysisConfidence float64 `json:"analysis_confidence"`

	RawResponse string    `json:"raw_response"`
	Timestamp   time.Time `json:"timestamp"`
}

func (r SemanticResult) ContentID() string { return r.VideoID }

func (r SemanticResult) IsError() bool { return r.ContentType == "error" }

// ParseSemantic maps a model response onto a SemanticResult. Only an
// unparseable response is an error; missing keys take their defaults.
func ParseSemantic(item content.Item, text string, at time.Time) (SemanticResult, error) {
	body := ExtractJSONObject(text)
	f, err := decodeFields(body)
	if err != nil {
		return SemanticResult{}, fmt.Errorf("failed to parse semantic response: %w", err)
	}

	return SemanticResult{
		VideoID:    item.ID,
		Influencer: item.Influencer,
		Platform:   string(item.Platform),

		MainTopic:     f.str("main_topic", "Unknown"),
		Subtopics:     f.strs("subtopics"),
		ContentType:   f.str("content_type", "other"),
		ContentFormat: f.str("content_format", "other"),

		NJRelevanceScore:     unit(f.float("nj_relevance_score", 0)),
		NJLocationsMentioned: f.strs("nj_locations_mentioned"),
		NJIssuesMentioned:    f.strs("nj_issues_mentioned"),
		LocalVsUniversal:     f.str("local_vs_universal", "universal"),

		KeyMessages:    f.strs("key_messages"),
		CallToAction:   f.optionalStr("call_to_action"),
		NarrativeFrame: f.str("narrative_frame", "Unknown"),
		Tone:           f.str("tone", "Unknown"),

		TargetAudience:   f.str("target_audience", "General"),
		AssumedKnowledge: f.str("assumed_knowledge", "low"),
		EngagementHooks:  f.strs("engagement_hooks"),

		PeopleMentioned:        f.strs("people_mentioned"),
		OrganizationsMentioned: f.strs("organizations_mentioned"),
		BrandsMentioned:        f.strs("brands_mentioned"),
		OtherCreatorsMentioned: f.strs("other_creators_mentioned"),

		ProductionQuality:  f.str("production_quality", "medium"),
		OriginalityScore:   unit(f.float("originality_score", 0.5)),
		AnalysisConfidence: unit(f.float("analysis_confidence", 0.5)),

		RawResponse: body,
		Timestamp:   at,
	}, nil
}

// SemanticError builds the placeholder result for an item that produced no
// usable analysis. reason ends up in RawResponse.
func SemanticError(item content.Item, reason string, at time.Time) SemanticResult {
	return SemanticResult{
		VideoID:    item.ID,
		Influencer: item.Influencer,
		Platform:   string(item.Platform),

		MainTopic:     "Error",
		Subtopics:     []string{},
		ContentType:   "error",
		ContentFormat: "error",

		NJLocationsMentioned: []string{},
		NJIssuesMentioned:    []string{},
		LocalVsUniversal:     "unknown",

		KeyMessages:    []string{},
		NarrativeFrame: "Error",
		Tone:           "error",

		TargetAudience:   "Unknown",
		AssumedKnowledge: "unknown",
		EngagementHooks:  []string{},

		PeopleMentioned:        []string{},
		OrganizationsMentioned: []string{},
		BrandsMentioned:        []string{},
		OtherCreatorsMentioned: []string{},

		ProductionQuality: "unknown",

		RawResponse: reason,
		Timestamp:   at,
	}
}

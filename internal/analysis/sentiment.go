package analysis

import (
	"fmt"
	"time"

	"github.com/influencer-lens/backend/internal/content"
)

var EmotionNames = []string{"joy", "anger", "fear", "sadness", "surprise", "disgust", "trust", "anticipation"}

type SentimentResult struct {
	VideoID    string `json:"video_id"`
	Influencer string `json:"influencer"`
	Platform   string `json:"platform"`

	SentimentScore float64 `json:"sentiment_score"`
	SentimentLabel string  `json:"sentiment_label"`

	Joy          float64 `json:"joy"`
	Anger        float64 `json:"anger"`
	Fear         float64 `json:"fear"`
	Sadness      float64 `json:"sadness"`
	Surprise     float64 `json:"surprise"`
	Disgust      float64 `json:"disgust"`
	Trust        float64 `json:"trust"`
	Anticipation float64 `json:"anticipation"`

	PrimaryEmotion   string `json:"primary_emotion"`
	SecondaryEmotion string `json:"secondary_emotion"`

	Formality       string  `json:"formality"`
	EnergyLevel     string  `json:"energy_level"`
	HumorLevel      float64 `json:"humor_level"`
	SarcasmDetected bool    `json:"sarcasm_detected"`

	RhetoricalMode        string   `json:"rhetorical_mode"`
	PersuasionTechniques  []string `json:"persuasion_techniques"`
	CallToActionStrength  string   `json:"call_to_action_strength"`
	AuthenticityScore     float64  `json:"authenticity_score"`
	PersonalDisclosure    string   `json:"personal_disclosure_level"`
	VulnerableMoments     bool     `json:"vulnerable_moments"`
	ScriptedVsSpontaneous string   `json:"scripted_vs_spontaneous"`

	ControversyPotential float64 `json:"controversy_potential"`
	ShareabilityScore    float64 `json:"shareability_score"`
	CommentBaitScore     float64 `json:"comment_bait_score"`

	Confidence  float64   `json:"confidence"`
	RawResponse string    `json:"raw_response"`
	Timestamp   time.Time `json:"timestamp"`
}

func (r SentimentResult) ContentID() string { return r.VideoID }

func (r SentimentResult) IsError() bool { return r.SentimentLabel == "error" }

// Emotions returns the eight emotion intensities keyed by name.
func (r SentimentResult) Emotions() map[string]float64 {
	return map[string]float64{
		"joy":          r.Joy,
		"anger":        r.Anger,
		"fear":         r.Fear,
		"sadness":      r.Sadness,
		"surprise":     r.Surprise,
		"disgust":      r.Disgust,
		"trust":        r.Trust,
		"anticipation": r.Anticipation,
	}
}

func ParseSentiment(item content.Item, text string, at time.Time) (SentimentResult, error) {
	body := ExtractJSONObject(text)
	f, err := decodeFields(body)
	if err != nil {
		return SentimentResult{}, fmt.Errorf("failed to parse sentiment response: %w", err)
	}
	emotions := f.object("emotions")

	return SentimentResult{
		VideoID:    item.ID,
		Influencer: item.Influencer,
		Platform:   string(item.Platform),

		SentimentScore: clamp(f.float("sentiment_score", 0), -1, 1),
		SentimentLabel: f.str("sentiment_label", "neutral"),

		Joy:          unit(emotions.float("joy", 0)),
		Anger:        unit(emotions.float("anger", 0)),
		Fear:         unit(emotions.float("fear", 0)),
		Sadness:      unit(emotions.float("sadness", 0)),
		Surprise:     unit(emotions.float("surprise", 0)),
		Disgust:      unit(emotions.float("disgust", 0)),
		Trust:        unit(emotions.float("trust", 0)),
		Anticipation: unit(emotions.float("anticipation", 0)),

		PrimaryEmotion:   f.str("primary_emotion", "neutral"),
		SecondaryEmotion: f.str("secondary_emotion", "neutral"),

		Formality:       f.str("formality", "casual"),
		EnergyLevel:     f.str("energy_level", "moderate"),
		HumorLevel:      unit(f.float("humor_level", 0)),
		SarcasmDetected: f.boolean("sarcasm_detected", false),

		RhetoricalMode:        f.str("rhetorical_mode", "informative"),
		PersuasionTechniques:  f.strs("persuasion_techniques"),
		CallToActionStrength:  f.str("call_to_action_strength", "none"),
		AuthenticityScore:     unit(f.float("authenticity_score", 0.5)),
		PersonalDisclosure:    f.str("personal_disclosure_level", "low"),
		VulnerableMoments:     f.boolean("vulnerable_moments", false),
		ScriptedVsSpontaneous: f.str("scripted_vs_spontaneous", "semi_scripted"),

		ControversyPotential: unit(f.float("controversy_potential", 0)),
		ShareabilityScore:    unit(f.float("shareability_score", 0.5)),
		CommentBaitScore:     unit(f.float("comment_bait_score", 0)),

		Confidence:  unit(f.float("confidence", 0.5)),
		RawResponse: body,
		Timestamp:   at,
	}, nil
}

func SentimentError(item content.Item, reason string, at time.Time) SentimentResult {
	return SentimentResult{
		VideoID:    item.ID,
		Influencer: item.Influencer,
		Platform:   string(item.Platform),

		SentimentLabel:   "error",
		PrimaryEmotion:   "error",
		SecondaryEmotion: "error",

		Formality:   "unknown",
		EnergyLevel: "unknown",

		RhetoricalMode:        "unknown",
		PersuasionTechniques:  []string{},
		CallToActionStrength:  "unknown",
		PersonalDisclosure:    "unknown",
		ScriptedVsSpontaneous: "unknown",

		RawResponse: reason,
		Timestamp:   at,
	}
}

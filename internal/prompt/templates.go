package prompt

const semanticTemplate = `You are an expert media analyst specializing in social media content and local journalism.
Analyze this content from a New Jersey influencer and provide a detailed assessment.

CONTENT TO ANALYZE:
Platform: {{.Platform}}
Influencer: {{.Influencer}}
Title/Caption: {{.Title}}
Description: {{.Description}}
Duration: {{.Duration}} seconds
Transcript: {{.Transcript}}
OCR Text (from video frames): {{.OCRText}}

Provide your analysis in the following JSON format (respond ONLY with valid JSON):

{
    "main_topic": "Primary subject matter in 3-5 words",
    "subtopics": ["subtopic1", "subtopic2", "subtopic3"],
    "content_type": "educational|entertainment|news|opinion|promotion|lifestyle|reaction|other",
    "content_format": "talking_head|vlog|tutorial|reaction|skit|interview|montage|news_report|other",

    "nj_relevance_score": 0.0 to 1.0,
    "nj_locations_mentioned": ["location1", "location2"],
    "nj_issues_mentioned": ["issue1", "issue2"],
    "local_vs_universal": "local|regional|national|universal",

    "key_messages": ["message1", "message2", "message3"],
    "call_to_action": "What action is viewer asked to take, or null",
    "narrative_frame": "How the content frames its subject (e.g., 'exposing hidden truth', 'celebrating local culture', 'personal journey')",
    "tone": "serious|humorous|informative|provocative|inspirational|casual|dramatic|satirical",

    "target_audience": "Description of intended audience (e.g., 'NJ residents interested in local politics')",
    "assumed_knowledge": "low|medium|high",
    "engagement_hooks": ["hook1", "hook2"],

    "people_mentioned": ["person1", "person2"],
    "organizations_mentioned": ["org1", "org2"],
    "brands_mentioned": ["brand1", "brand2"],
    "other_creators_mentioned": ["creator1", "creator2"],

    "production_quality": "low|medium|high|professional",
    "originality_score": 0.0 to 1.0,

    "analysis_confidence": 0.0 to 1.0
}

Focus especially on:
1. How this content relates to New Jersey specifically
2. What narrative techniques the creator uses
3. Who the content is designed to reach
4. What the creator wants the audience to do/think/feel`

const sentimentTemplate = `You are an expert media psychologist analyzing social media content.
Perform a deep sentiment and tone analysis of this content.

CONTENT:
Platform: {{.Platform}}
Influencer: {{.Influencer}}
Title: {{.Title}}
Transcript: {{.Transcript}}
OCR Text: {{.OCRText}}

Analyze the emotional and rhetorical qualities. Respond with JSON only:

{
    "sentiment_score": -1.0 to 1.0 (-1=very negative, 0=neutral, 1=very positive),
    "sentiment_label": "very_negative|negative|neutral|positive|very_positive",

    "emotions": {
        "joy": 0.0 to 1.0,
        "anger": 0.0 to 1.0,
        "fear": 0.0 to 1.0,
        "sadness": 0.0 to 1.0,
        "surprise": 0.0 to 1.0,
        "disgust": 0.0 to 1.0,
        "trust": 0.0 to 1.0,
        "anticipation": 0.0 to 1.0
    },
    "primary_emotion": "most dominant emotion",
    "secondary_emotion": "second most dominant emotion",

    "formality": "casual|conversational|formal|professional",
    "energy_level": "low|moderate|high|very_high",
    "humor_level": 0.0 to 1.0,
    "sarcasm_detected": true or false,

    "rhetorical_mode": "informative|persuasive|entertaining|confrontational|inspirational",
    "persuasion_techniques": ["technique1", "technique2"],
    "call_to_action_strength": "none|soft|moderate|strong|urgent",

    "authenticity_score": 0.0 to 1.0,
    "personal_disclosure_level": "none|low|medium|high",
    "vulnerable_moments": true or false,
    "scripted_vs_spontaneous": "scripted|semi_scripted|spontaneous",

    "controversy_potential": 0.0 to 1.0,
    "shareability_score": 0.0 to 1.0,
    "comment_bait_score": 0.0 to 1.0,

    "confidence": 0.0 to 1.0
}

Consider:
- Word choice, phrasing, and emphasis
- Speaking patterns and cadence (if transcript shows this)
- Use of emotional appeals vs logical arguments
- Authenticity vs performative elements
- What reactions this content is designed to provoke`

package analysis

import "fmt"

type Kind string

const (
	KindSemantic  Kind = "semantic"
	KindSentiment Kind = "sentiment"
)

var Kinds = []Kind{KindSemantic, KindSentiment}

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindSemantic, KindSentiment:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown analysis kind: %q", s)
	}
}

func (k Kind) String() string {
	return string(k)
}

// DefaultMaxTokens is the output token budget per request.
func (k Kind) DefaultMaxTokens() int {
	if k == KindSentiment {
		return 4096
	}
	return 2048
}

func (k Kind) CheckpointFile() string {
	if k == KindSentiment {
		return "sentiment_batch_checkpoint.json"
	}
	return "batch_checkpoint.json"
}

func (k Kind) ResultsFile() string {
	if k == KindSentiment {
		return "sentiment_analysis_full.json"
	}
	return "semantic_analysis_full.json"
}

func (k Kind) SummaryFile() string {
	if k == KindSentiment {
		return "sentiment_summary.csv"
	}
	return "semantic_analysis_summary.csv"
}

// Result is implemented by SemanticResult and SentimentResult.
type Result interface {
	SemanticResult | SentimentResult
	ContentID() string
	IsError() bool
}

package agent

import (
	"github.com/HitoniYori/ijime-support-ai/internal/llm"
)

// Failure is a backend failure translated for the user. Nothing is retried;
// the user re-submits.
type Failure struct {
	Kind    llm.Kind
	Message string
	Detail  string
	Err     error
}

var failureMessages = map[llm.Kind]string{
	llm.KindRateLimited:     "The AI service is busy (usage limit reached). Please wait a little while and send your message again.",
	llm.KindSafetyBlocked:   "The response was withheld by the AI service's content policy. Please rephrase your message and try again.",
	llm.KindServerTransient: "The AI service had a temporary internal error. Please try again later.",
	llm.KindEmptyResponse:   "Could not generate a response. Please try again.",
	llm.KindUnauthorized:    "The AI service rejected the API key. Please check the configured key.",
	llm.KindUnclassified:    "An unexpected error occurred while contacting the AI service.",
}

// NewFailure classifies err. Unclassified failures keep the raw message in Detail.
func NewFailure(err error) *Failure {
	kind := llm.Classify(err)
	f := &Failure{Kind: kind, Message: failureMessages[kind], Err: err}
	if kind == llm.KindUnclassified && err != nil {
		f.Detail = err.Error()
	}
	return f
}

func (f *Failure) Error() string {
	if f.Detail != "" {
		return f.Message + " (" + f.Detail + ")"
	}
	return f.Message
}

func (f *Failure) Unwrap() error { return f.Err }

package caption

import (
	"time"

	"github.com/google/uuid"
)

// Caption is one unit of recognized speech. Once IsFinal is set the text is
// immutable; only TranslatedText may attach later.
type Caption struct {
	ID             string
	Text           string
	IsFinal        bool
	Confidence     float64
	Timestamp      time.Time
	TranslatedText string
}

// Event is a single recognizer hypothesis handed to the reconciler. The
// adapter that created the event may have assigned the record id already;
// the reconciler mints one otherwise.
type Event struct {
	ID         string
	Text       string
	IsFinal    bool
	Confidence float64
	Timestamp  time.Time
}

func newCaption(evt Event) Caption {
	ts := evt.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	id := evt.ID
	if id == "" {
		id = uuid.NewString()
	}
	return Caption{
		ID:         id,
		Text:       evt.Text,
		IsFinal:    evt.IsFinal,
		Confidence: evt.Confidence,
		Timestamp:  ts,
	}
}

// Apply merges one recognition event into the caption list and returns the
// new list. The rule is the same for both kinds of event: any outstanding
// interim record is superseded, prior final records are preserved in order,
// and the event is appended as the new tail. Recognizers re-emit revised
// interim hypotheses for the same utterance, so dropping the stale interim
// is the only silent discard.
func Apply(list []Caption, evt Event) []Caption {
	merged := make([]Caption, 0, len(list)+1)
	for _, c := range list {
		if c.IsFinal {
			merged = append(merged, c)
		}
	}
	return append(merged, newCaption(evt))
}

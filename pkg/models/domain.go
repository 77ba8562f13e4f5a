package models

// Outcome is the terminal state of an identification request.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeFound
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "failed"
	}
}

// Result is what an identification call hands back to its caller.
type Result struct {
	Outcome    Outcome `json:"-"`
	Status     string  `json:"status"`               // Outcome as text
	Label      string  `json:"label,omitempty"`      // Predicted label
	Identifier string  `json:"identifier,omitempty"` // Catalogue key (Found only)
	SongName   string  `json:"song_name,omitempty"`  // Catalogue song name (Found only)
	Artist     string  `json:"artist,omitempty"`     // Catalogue artist (Found only)
	Image      []byte  `json:"-"`                    // Cover image bytes (Found only)
	Confidence float64 `json:"confidence,omitempty"` // Classifier probability for Label, 0-1
	Reason     string  `json:"reason,omitempty"`     // Failure reason (Failed only)
}

func Found(label string, rec *SongRecord, confidence float64) Result {
	res := Result{
		Outcome:    OutcomeFound,
		Status:     OutcomeFound.String(),
		Label:      label,
		Confidence: confidence,
	}
	if rec != nil {
		res.Identifier = rec.Identifier
		res.SongName = rec.SongName
		res.Artist = rec.ArtistName()
		res.Image = rec.Image
	}
	return res
}

func NotFound(label string, confidence float64) Result {
	return Result{
		Outcome:    OutcomeNotFound,
		Status:     OutcomeNotFound.String(),
		Label:      label,
		Confidence: confidence,
	}
}

func Failed(reason string) Result {
	return Result{
		Outcome: OutcomeFailed,
		Status:  OutcomeFailed.String(),
		Reason:  reason,
	}
}

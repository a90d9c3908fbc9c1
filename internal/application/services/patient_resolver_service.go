package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/crowndesk/receptionist/internal/domain/entities"
	"github.com/crowndesk/receptionist/internal/domain/repositories"
	"github.com/crowndesk/receptionist/pkg/config"
	apperrors "github.com/crowndesk/receptionist/pkg/errors"
)

// ResolutionOutcome classifies the result of an identity lookup
type ResolutionOutcome string

const (
	ResolutionMatched   ResolutionOutcome = "matched"
	ResolutionAmbiguous ResolutionOutcome = "ambiguous"
	ResolutionNotFound  ResolutionOutcome = "not_found"
)

// PatientResolution is the result of one identity-verification attempt.
// Candidates is populated only for ambiguous outcomes.
type PatientResolution struct {
	Outcome    ResolutionOutcome
	Match      *entities.PatientMatchCandidate
	Candidates []*entities.PatientMatchCandidate
}

// dobLayouts are the spoken and written date formats callers produce.
// Tried in order against the normalized input; the first parse wins.
var dobLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
}

// PatientResolverService verifies caller identity against the tenant's
// patient records. Date of birth must match exactly; name similarity only
// ranks the patients who already share that date of birth.
type PatientResolverService struct {
	repo repositories.PatientRepository
	cfg  *config.VoiceConfig
}

// NewPatientResolverService creates a new patient resolver service
func NewPatientResolverService(repo repositories.PatientRepository, cfg *config.VoiceConfig) *PatientResolverService {
	return &PatientResolverService{
		repo: repo,
		cfg:  cfg,
	}
}

// Resolve finds the best match for a spoken name and date of birth.
// An unparsable date of birth resolves to not found rather than widening
// the search.
func (s *PatientResolverService) Resolve(ctx context.Context, tenantID, name, dateOfBirth string) (*PatientResolution, error) {
	dob, ok := ParseSpokenDate(dateOfBirth)
	if !ok {
		return &PatientResolution{Outcome: ResolutionNotFound}, nil
	}

	patients, err := s.repo.ListByDateOfBirth(ctx, tenantID, dob)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return &PatientResolution{Outcome: ResolutionNotFound}, nil
		}
		return nil, err
	}
	if len(patients) == 0 {
		return &PatientResolution{Outcome: ResolutionNotFound}, nil
	}

	spoken := normalizeName(name)
	if spoken == "" {
		return &PatientResolution{Outcome: ResolutionNotFound}, nil
	}

	candidates := make([]*entities.PatientMatchCandidate, 0, len(patients))
	for _, patient := range patients {
		score := nameSimilarity(spoken, normalizeName(patient.FullName()))
		candidates = append(candidates, &entities.PatientMatchCandidate{
			PatientID:     patient.ID,
			FullName:      patient.FullName(),
			Score:         score,
			MatchedOnName: score >= s.cfg.MatchThreshold,
			MatchedOnDOB:  true,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].PatientID < candidates[j].PatientID
	})

	best := candidates[0]
	if !best.MatchedOnName {
		return &PatientResolution{Outcome: ResolutionNotFound}, nil
	}

	// A runner-up inside the tie band means the name alone cannot decide;
	// the caller has to clarify.
	if len(candidates) > 1 && candidates[1].MatchedOnName &&
		best.Score-candidates[1].Score < s.cfg.MatchTieBand {
		ambiguous := []*entities.PatientMatchCandidate{best, candidates[1]}
		for _, candidate := range candidates[2:] {
			if candidate.MatchedOnName && best.Score-candidate.Score < s.cfg.MatchTieBand {
				ambiguous = append(ambiguous, candidate)
			}
		}
		return &PatientResolution{Outcome: ResolutionAmbiguous, Candidates: ambiguous}, nil
	}

	return &PatientResolution{Outcome: ResolutionMatched, Match: best}, nil
}

// ParseSpokenDate normalizes a caller-provided date into a calendar day.
// Ordinal suffixes ("March 5th") and arbitrary casing are tolerated.
// Returns ok=false when no known layout parses it.
func ParseSpokenDate(raw string) (time.Time, bool) {
	cleaned := normalizeSpokenDate(raw)
	if cleaned == "" {
		return time.Time{}, false
	}

	for _, layout := range dobLayouts {
		if parsed, err := time.Parse(layout, cleaned); err == nil {
			return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// normalizeSpokenDate strips ordinal suffixes from day numbers and folds
// word casing to the forms the time package layouts expect
func normalizeSpokenDate(raw string) string {
	fields := strings.Fields(strings.TrimSpace(raw))
	for i, field := range fields {
		trailing := ""
		if strings.HasSuffix(field, ",") {
			field = strings.TrimSuffix(field, ",")
			trailing = ","
		}

		if stripped, ok := stripOrdinal(field); ok {
			field = stripped
		} else if field != "" && isAlpha(field) {
			field = strings.ToUpper(field[:1]) + strings.ToLower(field[1:])
		}

		fields[i] = field + trailing
	}
	return strings.Join(fields, " ")
}

func stripOrdinal(word string) (string, bool) {
	lower := strings.ToLower(word)
	for _, suffix := range []string{"st", "nd", "rd", "th"} {
		body := strings.TrimSuffix(lower, suffix)
		if body != lower && body != "" && isDigits(body) {
			return body, true
		}
	}
	return word, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return len(s) > 0
}

// normalizeName case-folds and strips everything but letters and spaces
func normalizeName(name string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ' || r == '-' || r == '\'' || r == '.':
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// nameSimilarity is a normalized edit-distance ratio in [0, 1]
func nameSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}

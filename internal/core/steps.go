package core

import "fmt"

// Step is one node of the fixed questionnaire graph.
type Step int

const (
	StepNone Step = iota
	StepName
	StepAge
	StepLocation
	StepLocationDetail
	StepNumbness
	StepNumbnessLocation
	StepOnset
	StepTrauma
	StepTraumaDetail
	StepPainCharacter
	StepPainScale
	StepAggravating
	StepRelieving
	StepPriorEpisodes
	StepPriorTreatment
	StepRedFlags
	StepComorbidities
	StepActivity
	StepSportType
	StepMedication
	StepPhysiotherapy
	StepHeight
	StepWeight
	StepConfirm
	StepEditSelect
	StepComplete
	StepCancelled
)

var stepNames = map[Step]string{
	StepNone:             "none",
	StepName:             "name",
	StepAge:              "age",
	StepLocation:         "location",
	StepLocationDetail:   "location_detail",
	StepNumbness:         "numbness",
	StepNumbnessLocation: "numbness_location",
	StepOnset:            "onset_timing",
	StepTrauma:           "trauma",
	StepTraumaDetail:     "trauma_detail",
	StepPainCharacter:    "pain_character",
	StepPainScale:        "pain_scale",
	StepAggravating:      "aggravating_factors",
	StepRelieving:        "relieving_factors",
	StepPriorEpisodes:    "prior_episodes",
	StepPriorTreatment:   "prior_treatment",
	StepRedFlags:         "red_flags",
	StepComorbidities:    "comorbidities",
	StepActivity:         "activity_level",
	StepSportType:        "sport_type",
	StepMedication:       "current_medication",
	StepPhysiotherapy:    "physiotherapy",
	StepHeight:           "height",
	StepWeight:           "weight",
	StepConfirm:          "confirm",
	StepEditSelect:       "edit_select",
	StepComplete:         "complete",
	StepCancelled:        "cancelled",
}

var stepsByName = func() map[string]Step {
	m := make(map[string]Step, len(stepNames))
	for s, n := range stepNames {
		m[n] = s
	}
	return m
}()

func (s Step) String() string {
	if n, ok := stepNames[s]; ok {
		return n
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// ParseStep maps a stored step name back to its Step. The empty string is
// StepNone.
func ParseStep(name string) (Step, error) {
	if name == "" {
		return StepNone, nil
	}
	s, ok := stepsByName[name]
	if !ok {
		return StepNone, fmt.Errorf("core: unknown step %q", name)
	}
	return s, nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Step) UnmarshalText(b []byte) error {
	v, err := ParseStep(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Terminal reports whether the conversation has ended at s.
func (s Step) Terminal() bool {
	return s == StepComplete || s == StepCancelled
}

// AllSteps lists every non-terminal state a live session can be in.
func AllSteps() []Step {
	out := make([]Step, 0, int(StepEditSelect))
	for s := StepName; s <= StepEditSelect; s++ {
		out = append(out, s)
	}
	return out
}

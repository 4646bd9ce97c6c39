package core

import "waitroom-intake/pkg"

type writeMode int

const (
	writeSet writeMode = iota
	// writeAppend concatenates the input onto the parent answer.
	writeAppend
	// writeAppendOrSkip is writeAppend with the skip option stored as
	// NotSpecified.
	writeAppendOrSkip
)

// node is the transition rule of one field step.  When branch fires the
// conversation continues into side; otherwise it moves on to next (or snaps
// back to the review step when the session has a resume target).
type node struct {
	write  writeMode
	branch Classifier
	side   Step
	next   Step
}

var graph = map[Step]node{
	StepName:             {next: StepAge},
	StepAge:              {next: StepLocation},
	StepLocation:         {branch: Radiates, side: StepLocationDetail, next: StepNumbness},
	StepLocationDetail:   {write: writeAppend, next: StepNumbness},
	StepNumbness:         {branch: Yes, side: StepNumbnessLocation, next: StepOnset},
	StepNumbnessLocation: {next: StepOnset},
	StepOnset:            {next: StepTrauma},
	StepTrauma:           {branch: Yes, side: StepTraumaDetail, next: StepPainCharacter},
	StepTraumaDetail:     {write: writeAppendOrSkip, next: StepPainCharacter},
	StepPainCharacter:    {next: StepPainScale},
	StepPainScale:        {next: StepAggravating},
	StepAggravating:      {next: StepRelieving},
	StepRelieving:        {next: StepPriorEpisodes},
	StepPriorEpisodes:    {branch: Yes, side: StepPriorTreatment, next: StepRedFlags},
	StepPriorTreatment:   {next: StepRedFlags},
	StepRedFlags:         {next: StepComorbidities},
	StepComorbidities:    {next: StepActivity},
	StepActivity:         {branch: Sport, side: StepSportType, next: StepMedication},
	StepSportType:        {next: StepMedication},
	StepMedication:       {next: StepPhysiotherapy},
	StepPhysiotherapy:    {next: StepHeight},
	StepHeight:           {next: StepWeight},
	StepWeight:           {next: StepConfirm},
}

func writeAnswer(answers pkg.Answers, key pkg.FieldKey, mode writeMode, input string) {
	switch mode {
	case writeAppend:
		answers[key] += DetailSeparator + input
	case writeAppendOrSkip:
		if Skip(input) {
			input = NotSpecified
		}
		answers[key] += DetailSeparator + input
	default:
		answers[key] = input
	}
}

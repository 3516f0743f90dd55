package logic

// ShouldEndSurvey reports whether any EndSurvey rule holds for the current
// answers, wherever the respondent currently is in the survey.
func ShouldEndSurvey(rules []Rule, answers Answers) bool {
	_, ok := EndingRule(rules, answers)
	return ok
}

// EndingRule returns the first EndSurvey rule, in priority order, whose
// condition holds.
func EndingRule(rules []Rule, answers Answers) (Rule, bool) {
	ending := make([]Rule, 0)
	for _, r := range rules {
		if r.Action == EndSurvey {
			ending = append(ending, r)
		}
	}
	sortRules(ending)

	for _, r := range ending {
		if r.holds(answers) {
			return r, true
		}
	}
	return Rule{}, false
}

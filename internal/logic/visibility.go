package logic

// Visibility returns the visible state of every question in the survey.
//
// Questions start visible, except targets of at least one Show rule, which
// start hidden. Show and Hide rules are then applied per target in priority
// order and the last one whose condition holds decides. Skip rules whose
// condition holds remove their target regardless of Show and Hide.
func Visibility(survey Survey, rules []Rule, answers Answers) map[string]bool {
	visible := make(map[string]bool, len(survey.Questions))
	for _, q := range survey.Questions {
		visible[q.ID] = true
	}

	groups := make(map[string][]Rule)
	var skips []Rule
	for _, r := range rules {
		if _, ok := visible[r.TargetQuestionID]; !ok {
			continue
		}
		switch r.Action {
		case Show:
			visible[r.TargetQuestionID] = false
			groups[r.TargetQuestionID] = append(groups[r.TargetQuestionID], r)
		case Hide:
			groups[r.TargetQuestionID] = append(groups[r.TargetQuestionID], r)
		case Skip:
			skips = append(skips, r)
		}
	}

	for target, group := range groups {
		sortRules(group)
		for _, r := range group {
			if r.holds(answers) {
				visible[target] = r.Action == Show
			}
		}
	}

	for _, r := range skips {
		if r.holds(answers) {
			visible[r.TargetQuestionID] = false
		}
	}

	return visible
}

// VisibleQuestions returns the IDs of the visible questions in natural order.
func VisibleQuestions(survey Survey, rules []Rule, answers Answers) []string {
	visible := Visibility(survey, rules, answers)

	ids := make([]string, 0, len(survey.Questions))
	for _, q := range survey.ordered() {
		if visible[q.ID] {
			ids = append(ids, q.ID)
		}
	}
	return ids
}

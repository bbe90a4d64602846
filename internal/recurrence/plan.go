package recurrence

import (
	"errors"
	"fmt"

	"bilancio/internal/core"
)

// Series is a template ready to insert plus the occurrences to batch-insert
// once the template has an ID.
type Series struct {
	Template    core.Transaction
	Occurrences []core.Transaction
}

// Plan turns a transaction marked recurring into a Series. The template's
// date and the rule's start date are moved to the first selected weekday
// when needed, and the template is left unconfirmed under manual
// confirmation. An end date before the start is not an error: the series
// is just the template. Callers validate the template's own fields.
func (e Expander) Plan(template core.Transaction, rule core.RecurrenceRule) (Series, error) {
	rule.StartDate = template.Date
	if err := rule.Validate(); err != nil && !errors.Is(err, core.ErrEndBeforeStart) {
		return Series{}, err
	}

	start := NormalizeStartDate(template.Date, rule)
	rule.StartDate = start
	if rule.EndDate != nil {
		end := *rule.EndDate
		rule.EndDate = &end
	}

	tpl := template
	tpl.ID = 0
	tpl.Date = start
	tpl.Recurring = true
	tpl.IsRecurringParent = true
	tpl.RecurringParentID = nil
	tpl.Rule = &rule
	if rule.Confirmation == core.ManualConfirm {
		tpl.Confirmed = false
	}

	s := Series{Template: tpl}
	for d := range e.Expand(start, rule) {
		s.Occurrences = append(s.Occurrences, occurrenceOf(tpl, d))
	}
	return s, nil
}

func occurrenceOf(tpl core.Transaction, d core.Date) core.Transaction {
	occ := tpl
	occ.ID = 0
	occ.Date = d
	occ.IsRecurringParent = false
	occ.Rule = nil
	occ.RecurringParentID = nil
	occ.Recurring = true
	occ.Confirmed = tpl.Rule.Confirmation == core.AutoConfirm
	return occ
}

// Bind links every occurrence to the persisted template.
func (s *Series) Bind(templateID int64) error {
	if templateID <= 0 {
		return fmt.Errorf("bind series: invalid template id %d", templateID)
	}
	s.Template.ID = templateID
	for i := range s.Occurrences {
		id := templateID
		s.Occurrences[i].RecurringParentID = &id
	}
	return nil
}

// Dates returns the template date followed by every occurrence date.
func (s Series) Dates() []core.Date {
	out := make([]core.Date, 0, len(s.Occurrences)+1)
	out = append(out, s.Template.Date)
	for _, o := range s.Occurrences {
		out = append(out, o.Date)
	}
	return out
}

package vo

import (
	"net/url"
	"strconv"
)

// JobOutcome is the payload delivered to the notification sink once per job.
type JobOutcome struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
	ID      string   `json:"id"`
}

// NewJobOutcome copies errs so later appends on the run do not leak into the outcome.
func NewJobOutcome(id string, success bool, errs []string) JobOutcome {
	out := make([]string, len(errs))
	copy(out, errs)
	return JobOutcome{Success: success, Errors: out, ID: id}
}

// Form encodes the outcome as form fields: one "errors" value per message.
func (o JobOutcome) Form() url.Values {
	form := url.Values{}
	for _, e := range o.Errors {
		form.Add("errors", e)
	}
	form.Set("success", strconv.FormatBool(o.Success))
	form.Set("id", o.ID)
	return form
}

// Package health aggregates the health checks of the services running in one replica.
package health

import (
	"context"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Check is one named health check. The function has the signature of every service's Health.
type Check struct {
	Name  string
	Check func(context.Context, bool) (int, string, error)
}

type report struct {
	Status       string       `json:"status"`
	Dependencies []dependency `json:"dependencies"`
}

type dependency struct {
	Resource     string              `json:"resource"`
	Status       string              `json:"status"`
	Error        string              `json:"error,omitempty"`
	Message      string              `json:"message,omitempty"`
	Dependencies jsoniter.RawMessage `json:"dependencies,omitempty"`
}

// CheckAll runs every check and reports 503 if any of them fails. A message that is itself a
// JSON report is nested under the check instead of being quoted.
func CheckAll(ctx context.Context, checkLiveness bool, checks []Check) (int, string, error) {
	r := report{Dependencies: make([]dependency, 0, len(checks))}
	overall := http.StatusOK

	for _, check := range checks {
		status, message, err := check.Check(ctx, checkLiveness)
		if err != nil || status != http.StatusOK {
			overall = http.StatusServiceUnavailable
		}

		dep := dependency{Resource: check.Name, Status: strconv.Itoa(status)}

		if err != nil {
			dep.Error = err.Error()
		}

		if len(message) > 0 && message[0] == '{' && json.Valid([]byte(message)) {
			dep.Dependencies = jsoniter.RawMessage(message)
		} else {
			dep.Message = message
		}

		r.Dependencies = append(r.Dependencies, dep)
	}

	r.Status = strconv.Itoa(overall)

	b, err := json.Marshal(r)
	if err != nil {
		return http.StatusInternalServerError, "", err
	}

	return overall, string(b), nil
}

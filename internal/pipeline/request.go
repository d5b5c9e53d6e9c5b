package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RunRequest is the form posted to start an inSPIRE run.
type RunRequest struct {
	User                string            `json:"user"`
	Project             string            `json:"project"`
	RunQuantification   Flag              `json:"runQuantification"`
	MzAccuracy          Number            `json:"mzAccuracy"`
	MS1Accuracy         Number            `json:"ms1Accuracy"`
	MzUnits             string            `json:"mzUnits"`
	TechnicalReplicates any               `json:"technicalReplicates,omitempty"`
	UseBindingAffinity  any               `json:"useBindingAffinity,omitempty"`
	Alleles             string            `json:"alleles,omitempty"`
	ControlFlags        string            `json:"controlFlags,omitempty"`
	AdditionalConfigs   map[string]string `json:"additionalConfigs,omitempty"`
}

// BindingRequested reports whether the form asked for binding prediction.
func (r RunRequest) BindingRequested() bool {
	return r.UseBindingAffinity != nil
}

// Flag accepts true/false, 0/1 and their string forms.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = false
		return nil
	}
	raw := string(data)
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "", "0", "false", "no", "off":
		*f = false
		return nil
	case "1", "true", "yes", "on":
		*f = true
		return nil
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		*f = n != 0
		return nil
	}
	return fmt.Errorf("invalid flag %s", data)
}

// Number accepts a JSON number or a numeric string.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	var value float64
	if err := json.Unmarshal(data, &value); err == nil {
		*n = Number(value)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("invalid number %s", data)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", text)
	}
	*n = Number(value)
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, elem := range strings.Split(value, ",") {
		if elem = strings.TrimSpace(elem); elem != "" {
			out = append(out, elem)
		}
	}
	return out
}

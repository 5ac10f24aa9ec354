package bazel

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/ritzau/syncgraph/pkg/model"
)

type queryXML struct {
	Rules []ruleXML `xml:"rule"`
}

type ruleXML struct {
	Name   string         `xml:"name,attr"`
	Class  string         `xml:"class,attr"`
	Inputs []ruleInputXML `xml:"rule-input"`
}

type ruleInputXML struct {
	Name string `xml:"name,attr"`
}

// Rule is one rule from a query result with its direct inputs
type Rule struct {
	Label  model.Label
	Class  string
	Inputs []model.Label
}

// ParseQueryOutput parses `bazel query --output=xml` into rules. Inputs that are not
// valid labels are skipped; the result keeps bazel's order.
func ParseQueryOutput(data []byte) ([]Rule, error) {
	// Bazel outputs XML 1.1, but Go's XML parser only supports 1.0
	data = bytes.Replace(data, []byte(`<?xml version="1.1"`), []byte(`<?xml version="1.0"`), 1)

	var result queryXML
	if err := xml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	rules := make([]Rule, 0, len(result.Rules))
	for _, r := range result.Rules {
		label, err := model.ParseLabel(r.Name)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		rule := Rule{Label: label, Class: r.Class}
		for _, in := range r.Inputs {
			dep, err := model.ParseLabel(in.Name)
			if err != nil {
				continue
			}
			rule.Inputs = append(rule.Inputs, dep)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// ParseLabelOutput parses `bazel query --output=label`, one label per line.
// Lines that are not labels (progress chatter) are skipped.
func ParseLabelOutput(data []byte) []model.Label {
	var labels []model.Label
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "//") && !strings.HasPrefix(line, "@") {
			continue
		}
		label, err := model.ParseLabel(line)
		if err != nil {
			continue
		}
		labels = append(labels, label)
	}
	return labels
}

package schema

import (
	"fmt"
	"strings"
)

// parseDoc splits a tool documentation block into its short description
// and per-parameter descriptions.
//
// The expected shape mirrors a conventional docstring:
//
//	Create an issue in the tracker.
//
//	Args:
//	    title: The title of the issue.
//	    description: The full issue body.
//
// The short description is everything before the "Args:" heading.
// Parameter lines are "name: description"; indented continuation lines
// fold into the preceding parameter. A missing Args section is fine
// since per-parameter docs are optional. A missing short description
// is not.
func parseDoc(doc string) (string, map[string]string, error) {
	if strings.TrimSpace(doc) == "" {
		return "", nil, fmt.Errorf("empty documentation block")
	}

	lines := strings.Split(doc, "\n")
	params := make(map[string]string)

	var short []string
	inArgs := false
	current := ""

	for _, raw := range lines {
		line := strings.TrimSpace(raw)

		if !inArgs {
			if strings.EqualFold(line, "args:") {
				inArgs = true
				continue
			}
			short = append(short, line)
			continue
		}

		if line == "" {
			current = ""
			continue
		}

		name, desc, ok := splitParamLine(line)
		if ok {
			params[name] = desc
			current = name
			continue
		}

		// Continuation of the previous parameter's description.
		if current != "" {
			params[current] = strings.TrimSpace(params[current] + " " + line)
		}
	}

	shortDesc := strings.TrimSpace(strings.Join(short, " "))
	if shortDesc == "" {
		return "", nil, fmt.Errorf("no short description before Args section")
	}

	return shortDesc, params, nil
}

// splitParamLine parses "name: description". The name must look like an
// identifier; otherwise the line is treated as continuation text.
func splitParamLine(line string) (string, string, bool) {
	name, desc, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}

	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, " \t") {
		return "", "", false
	}
	for _, r := range name {
		valid := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !valid {
			return "", "", false
		}
	}

	return name, strings.TrimSpace(desc), true
}

package rules

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadFromDirectory discovers and loads all rule files from a directory
func LoadFromDirectory(dirPath string) ([]RuleSetWithFile, []ValidationError) {
	var sets []RuleSetWithFile
	var errors []ValidationError

	files, err := discoverYAMLFiles(dirPath)
	if err != nil {
		errors = append(errors, ValidationError{
			File:    dirPath,
			Message: fmt.Sprintf("failed to read directory: %v", err),
		})
		return nil, errors
	}

	for _, file := range files {
		set, err := LoadFile(file)
		if err != nil {
			errors = append(errors, ValidationError{
				File:    file,
				Message: fmt.Sprintf("failed to parse YAML: %v", err),
			})
			continue
		}
		sets = append(sets, RuleSetWithFile{
			RuleSet: set,
			File:    file,
		})
	}

	return sets, errors
}

// discoverYAMLFiles finds all *.yaml and *.yml files in a directory
func discoverYAMLFiles(dirPath string) ([]string, error) {
	var files []string

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// LoadFile parses a single YAML rule file
func LoadFile(filePath string) (*RuleSet, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML rule set
func Parse(data []byte) (*RuleSet, error) {
	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// Compile turns rule specs into rules. It never drops a rule: a spec with a
// malformed payload compiles to a rule without a condition, which never
// matches, and the problem is reported as a ValidationError.
func Compile(file string, specs []RuleSpec) ([]Rule, []ValidationError) {
	compiled := make([]Rule, 0, len(specs))
	var errors []ValidationError

	for i, spec := range specs {
		rule := Rule{
			ID:                  spec.ID,
			Category:            spec.Category,
			BaseSeverity:        spec.BaseSeverity,
			ConfidenceThreshold: spec.ConfidenceThreshold,
			MessageTemplate:     spec.MessageTemplate,
			DocURL:              spec.DocURL,
			Dominant:            spec.Dominant,
			Hint:                spec.Hint,
		}

		cond, err := spec.condition()
		if err != nil {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    fmt.Sprintf("rules[%d]", i),
				Message: fmt.Sprintf("rule %s: %v", spec.ID, err),
			})
		} else {
			rule.Condition = cond
		}

		compiled = append(compiled, rule)
	}

	return compiled, errors
}

func (s RuleSpec) condition() (Condition, error) {
	var found []Condition
	if s.Predicate != nil {
		found = append(found, *s.Predicate)
	}
	if s.Regression != nil {
		found = append(found, *s.Regression)
	}
	if s.Trend != nil {
		found = append(found, *s.Trend)
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("no predicate, regression or trend")
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%d payloads set, expected exactly one", len(found))
	}
}

// LoadRules loads a rule file and compiles it. Compile problems are returned
// alongside the rules; an error is returned only when the file is unreadable.
func LoadRules(filePath string) ([]Rule, []ValidationError, error) {
	set, err := LoadFile(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load rules from %s: %w", filePath, err)
	}
	compiled, errs := Compile(filePath, set.Rules)
	return compiled, errs, nil
}

package rules

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

const schemaURL = "https://perfguard.dev/schemas/rules_v1.json"

//go:embed schema/rules_v1.json
var schemaJSON []byte

// Validator handles rule file validation
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator creates a validator backed by the embedded rule schema
func NewValidator() (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateDirectory validates every rule file in a directory, including
// cross-file checks such as duplicate rule IDs.
func (v *Validator) ValidateDirectory(dirPath string) []ValidationError {
	files, err := discoverYAMLFiles(dirPath)
	if err != nil {
		return []ValidationError{{
			File:    dirPath,
			Message: fmt.Sprintf("failed to read directory: %v", err),
		}}
	}

	var allErrors []ValidationError
	var sets []RuleSetWithFile
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			allErrors = append(allErrors, ValidationError{
				File:    file,
				Message: fmt.Sprintf("failed to read file: %v", err),
			})
			continue
		}
		set, errs := v.validateBytes(file, data)
		allErrors = append(allErrors, errs...)
		if set != nil {
			sets = append(sets, RuleSetWithFile{RuleSet: set, File: file})
		}
	}

	allErrors = append(allErrors, validateExtraRules(sets)...)
	return allErrors
}

// ValidateFile validates a single rule file
func (v *Validator) ValidateFile(file string) []ValidationError {
	data, err := os.ReadFile(file)
	if err != nil {
		return []ValidationError{{File: file, Message: fmt.Sprintf("failed to read file: %v", err)}}
	}
	return v.ValidateBytes(file, data)
}

// ValidateBytes validates rule file contents; file is used for error reporting
func (v *Validator) ValidateBytes(file string, data []byte) []ValidationError {
	set, errs := v.validateBytes(file, data)
	if set != nil {
		errs = append(errs, validateExtraRules([]RuleSetWithFile{{RuleSet: set, File: file}})...)
	}
	return errs
}

func (v *Validator) validateBytes(file string, data []byte) (*RuleSet, []ValidationError) {
	var errors []ValidationError

	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, []ValidationError{{
			File:    file,
			Message: fmt.Sprintf("failed to parse YAML: %v", err),
		}}
	}

	if err := v.schema.Validate(doc); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			errors = append(errors, extractSchemaErrors(file, validationErr)...)
		} else {
			errors = append(errors, ValidationError{
				File:    file,
				Message: err.Error(),
			})
		}
	}

	set, err := Parse(data)
	if err != nil {
		errors = append(errors, ValidationError{
			File:    file,
			Message: fmt.Sprintf("failed to decode rules: %v", err),
		})
		return nil, errors
	}

	return set, errors
}

// extractSchemaErrors converts JSON schema validation errors to ValidationErrors
func extractSchemaErrors(file string, err *jsonschema.ValidationError) []ValidationError {
	var errors []ValidationError

	path := strings.Join(err.InstanceLocation, ".")
	if path == "" {
		path = "(root)"
	}

	errors = append(errors, ValidationError{
		File:    file,
		Path:    path,
		Message: err.Error(),
	})

	for _, cause := range err.Causes {
		errors = append(errors, extractSchemaErrors(file, cause)...)
	}

	return errors
}

// validateExtraRules applies checks the schema cannot express
func validateExtraRules(sets []RuleSetWithFile) []ValidationError {
	var errors []ValidationError

	idSeen := make(map[string]string)
	for _, set := range sets {
		_, compileErrs := Compile(set.File, set.RuleSet.Rules)
		errors = append(errors, compileErrs...)

		for i, spec := range set.RuleSet.Rules {
			path := fmt.Sprintf("rules[%d]", i)

			if prevFile, exists := idSeen[spec.ID]; exists {
				errors = append(errors, ValidationError{
					File:    set.File,
					Path:    path + ".id",
					Message: fmt.Sprintf("duplicate ID %q (also in %s)", spec.ID, filepath.Base(prevFile)),
				})
			} else {
				idSeen[spec.ID] = set.File
			}

			if spec.Dominant && spec.Hint {
				errors = append(errors, ValidationError{
					File:    set.File,
					Path:    path,
					Message: fmt.Sprintf("rule %s cannot be both dominant and hint", spec.ID),
				})
			}

			if spec.Hint && spec.Predicate == nil {
				errors = append(errors, ValidationError{
					File:    set.File,
					Path:    path + ".hint",
					Message: fmt.Sprintf("hint rule %s must be a predicate rule", spec.ID),
				})
			}
		}
	}

	return errors
}

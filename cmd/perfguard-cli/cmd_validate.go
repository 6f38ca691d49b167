package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/amiyaDev/perfguard/internal/rules"
)

func newValidateCmd() *cobra.Command {
	var dir, file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate rule YAML files against the rule schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (dir == "") == (file == "") {
				return fmt.Errorf("exactly one of --dir or --file is required")
			}

			validator, err := rules.NewValidator()
			if err != nil {
				return fmt.Errorf("failed to initialize validator: %w", err)
			}

			var errs []rules.ValidationError
			if dir != "" {
				errs = validator.ValidateDirectory(dir)
			} else {
				errs = validator.ValidateFile(file)
			}

			if code := reportValidation(cmd.OutOrStdout(), cmd.ErrOrStderr(), errs); code != exitSuccess {
				return exitCodeError{code: code}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory containing rule YAML files")
	cmd.Flags().StringVar(&file, "file", "", "single rule YAML file")

	return cmd
}

// reportValidation prints errors grouped by file and returns the exit code
func reportValidation(stdout, stderr io.Writer, errs []rules.ValidationError) int {
	if len(errs) == 0 {
		fmt.Fprintln(stdout, "✓ All rule files are valid")
		return exitSuccess
	}

	errorsByFile := make(map[string][]rules.ValidationError)
	for _, err := range errs {
		errorsByFile[err.File] = append(errorsByFile[err.File], err)
	}

	var files []string
	for file := range errorsByFile {
		files = append(files, file)
	}
	sort.Strings(files)

	fmt.Fprintf(stderr, "✗ Validation failed with %d error(s):\n\n", len(errs))
	for _, file := range files {
		for _, err := range errorsByFile[file] {
			if err.Path != "" {
				fmt.Fprintf(stderr, "%s: %s: %s\n", filepath.Base(err.File), err.Path, err.Message)
			} else {
				fmt.Fprintf(stderr, "%s: %s\n", filepath.Base(err.File), err.Message)
			}
		}
	}

	return exitInvalid
}

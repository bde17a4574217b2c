package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ValidationSeverity indicates whether an issue is an error or warning.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field       string
	Message     string
	Suggestions []string
	Severity    ValidationSeverity
}

// StrictValidationResult contains validation errors from strict unmarshaling.
type StrictValidationResult struct {
	UnknownFields []FieldError
	TypeErrors    []FieldError
}

// Valid returns true if there are no validation errors.
func (r *StrictValidationResult) Valid() bool {
	return len(r.UnknownFields) == 0 && len(r.TypeErrors) == 0
}

// FormatErrors returns a human-readable summary of every issue found.
func (r *StrictValidationResult) FormatErrors() string {
	if r.Valid() {
		return ""
	}

	var sb strings.Builder
	if len(r.UnknownFields) > 0 {
		sb.WriteString("unknown fields:\n")
		for _, f := range r.UnknownFields {
			sb.WriteString(fmt.Sprintf("  - %s: %s", f.Field, f.Message))
			if len(f.Suggestions) > 0 {
				sb.WriteString(fmt.Sprintf(" (did you mean: %s?)", strings.Join(f.Suggestions, ", ")))
			}
			sb.WriteString("\n")
		}
	}
	if len(r.TypeErrors) > 0 {
		sb.WriteString("type errors:\n")
		for _, f := range r.TypeErrors {
			sb.WriteString(fmt.Sprintf("  - %s: %s\n", f.Field, f.Message))
		}
	}
	return sb.String()
}

// ValidateConfigStructure decodes rawMap into Config with unknown-key
// detection enabled, catching typos and misplaced fields before the
// normal unmarshal runs.
func ValidateConfigStructure(rawMap map[string]interface{}) (*StrictValidationResult, error) {
	result := &StrictValidationResult{}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      cfg,
		ErrorUnused: true,
		TagName:     "yaml",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("config: create strict decoder: %w", err)
	}

	if err := decoder.Decode(rawMap); err != nil {
		collectValidationErrors(err, result)
	}

	return result, nil
}

func collectValidationErrors(err error, result *StrictValidationResult) {
	errStr := err.Error()

	if strings.Contains(errStr, "has invalid keys:") {
		result.UnknownFields = append(result.UnknownFields, extractUnknownFields(errStr)...)
		return
	}
	if strings.Contains(errStr, "expected type") || strings.Contains(errStr, "cannot unmarshal") || strings.Contains(errStr, "cannot decode") {
		result.TypeErrors = append(result.TypeErrors, parseTypeError(errStr))
		return
	}
	result.TypeErrors = append(result.TypeErrors, FieldError{Field: "unknown", Message: errStr, Severity: SeverityError})
}

func extractUnknownFields(errMsg string) []FieldError {
	var fieldErrors []FieldError

	idx := strings.Index(errMsg, "has invalid keys:")
	if idx == -1 {
		return []FieldError{{Field: "unknown", Message: errMsg, Severity: SeverityError}}
	}

	beforeKeys := errMsg[:idx]
	parentPath := ""
	if lastQuote := strings.LastIndex(beforeKeys, "'"); lastQuote > 0 {
		if openingQuote := strings.LastIndex(beforeKeys[:lastQuote], "'"); openingQuote != -1 {
			parentPath = beforeKeys[openingQuote+1 : lastQuote]
		}
	}

	validFields := collectValidFieldNames(reflect.TypeOf(Config{}))

	keysStr := strings.TrimSpace(errMsg[idx+len("has invalid keys:"):])
	for _, key := range strings.Split(keysStr, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		fullPath := key
		if parentPath != "" {
			fullPath = parentPath + "." + key
		}
		fieldErrors = append(fieldErrors, FieldError{
			Field:       fullPath,
			Message:     "field is not recognized in the configuration schema",
			Suggestions: findSimilarFields(fullPath, validFields, 2),
			Severity:    SeverityError,
		})
	}

	return fieldErrors
}

func parseTypeError(errStr string) FieldError {
	fieldName := "unknown"
	if start := strings.Index(errStr, "'"); start != -1 {
		if end := strings.Index(errStr[start+1:], "'"); end != -1 {
			fieldName = errStr[start+1 : start+1+end]
		}
	}
	return FieldError{Field: fieldName, Message: errStr, Severity: SeverityError}
}

// collectValidFieldNames recursively extracts yaml field paths from a
// struct type, for fuzzy-matching typo suggestions.
func collectValidFieldNames(t reflect.Type) []string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var fields []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		yamlTag := field.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		name := strings.TrimSpace(strings.Split(yamlTag, ",")[0])
		if name == "" {
			continue
		}
		fields = append(fields, name)

		fieldType := field.Type
		if fieldType.Kind() == reflect.Ptr {
			fieldType = fieldType.Elem()
		}
		if fieldType.Kind() == reflect.Struct {
			for _, nested := range collectValidFieldNames(fieldType) {
				fields = append(fields, name+"."+nested)
			}
		}
	}
	return fields
}

func findSimilarFields(typo string, validFields []string, maxDistance int) []string {
	type scored struct {
		field    string
		distance int
	}
	var candidates []scored
	typoLower := strings.ToLower(typo)

	for _, field := range validFields {
		fieldLower := strings.ToLower(field)
		if d := levenshteinDistance(typoLower, fieldLower); d <= maxDistance {
			candidates = append(candidates, scored{field, d})
		}
	}

	for i := 0; i < len(candidates) && i < 3; i++ {
		min := i
		for j := i + 1; j < len(candidates); j++ {
			if candidates[j].distance < candidates[min].distance {
				min = j
			}
		}
		candidates[i], candidates[min] = candidates[min], candidates[i]
	}

	var suggestions []string
	for i := 0; i < len(candidates) && i < 3; i++ {
		suggestions = append(suggestions, candidates[i].field)
	}
	return suggestions
}

func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	matrix := make([][]int, len(s1)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(s2)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(s1); i++ {
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			del := matrix[i-1][j] + 1
			ins := matrix[i][j-1] + 1
			sub := matrix[i-1][j-1] + cost
			best := del
			if ins < best {
				best = ins
			}
			if sub < best {
				best = sub
			}
			matrix[i][j] = best
		}
	}

	return matrix[len(s1)][len(s2)]
}

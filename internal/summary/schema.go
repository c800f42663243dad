package summary

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// ErrSchemaViolation is matched by every [*SchemaViolation] via errors.Is.
var ErrSchemaViolation = errors.New("summary: schema violation")

// Field names of a summary record, in schema order.
const (
	FieldInfo     = "info"
	FieldContact  = "contact"
	FieldSkills   = "skills"
	FieldLocation = "location"
	FieldNext     = "next"
	FieldConf     = "conf"
)

// DefaultConfidence is used when the model omits conf or sends a non-number.
const DefaultConfidence = 0.5

var fields = []string{FieldInfo, FieldContact, FieldSkills, FieldLocation, FieldNext, FieldConf}

// Record is the validated result of summarising one captured conversation.
// All six fields are always present once a Record leaves [Validate].
type Record struct {
	// Info is free text about the counterpart; it names them when known.
	Info string `json:"info"`

	// Contact is free-text contact information. May be empty.
	Contact string `json:"contact"`

	// Skills is an ordered, possibly empty list. Never nil after validation.
	Skills []string `json:"skills"`

	Location string `json:"location"`

	// Next is the agreed follow-up.
	Next string `json:"next"`

	// Conf is the model's confidence in [0,1].
	Conf float64 `json:"conf"`
}

// nameRe finds runs of capitalised words, the usual shape of a full name.
var nameRe = regexp.MustCompile(`\p{Lu}[\p{Ll}'-]+(?:\s+\p{Lu}[\p{Ll}'-]+)+`)

// sentenceStarters are capitalised words that open an info line without
// being part of a name ("Met Dana Lee at ...").
var sentenceStarters = map[string]bool{
	"I": true, "My": true, "Met": true, "The": true, "This": true, "We": true,
	"He": true, "She": true, "They": true, "Their": true, "His": true, "Her": true,
	"Spoke": true, "Talked": true, "Name": true,
}

// Identity returns a short label for the counterpart: the first full name in
// Info, falling back to Contact. Empty when neither yields anything.
func (r Record) Identity() string {
	for _, m := range nameRe.FindAllString(r.Info, -1) {
		words := strings.Fields(m)
		for len(words) > 0 && sentenceStarters[words[0]] {
			words = words[1:]
		}
		if len(words) >= 2 {
			return strings.Join(words, " ")
		}
	}
	return strings.TrimSpace(r.Contact)
}

// SchemaViolation lists every constraint a summary value broke.
type SchemaViolation struct {
	Problems []string
}

func (v *SchemaViolation) Error() string {
	return "summary: schema violation: " + strings.Join(v.Problems, "; ")
}

// Is reports whether target is [ErrSchemaViolation].
func (v *SchemaViolation) Is(target error) bool { return target == ErrSchemaViolation }

// ValidateJSON decodes data and validates the result with [Validate].
// Undecodable input is reported as a [*SchemaViolation].
func ValidateJSON(data []byte) (Record, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Record{}, &SchemaViolation{Problems: []string{"invalid JSON: " + err.Error()}}
	}
	return Validate(v)
}

// Validate coerces and checks an arbitrary decoded JSON value.
//
// Coercions come first so that absent or oddly typed fields do not fail the
// record: missing or null text fields become "", scalar text fields are
// formatted as strings, a non-array skills becomes [], a missing or
// non-numeric conf becomes [DefaultConfidence]. What remains is enforced:
// skills must hold only strings, conf must lie in [0,1] and no field outside
// the six is allowed. Every problem found is reported in one error.
func Validate(v any) (Record, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Record{}, &SchemaViolation{Problems: []string{fmt.Sprintf("summary must be a JSON object, got %s", typeName(v))}}
	}

	var (
		rec      Record
		problems []string
	)

	rec.Info = coerceText(obj[FieldInfo])
	rec.Contact = coerceText(obj[FieldContact])
	rec.Location = coerceText(obj[FieldLocation])
	rec.Next = coerceText(obj[FieldNext])

	rec.Skills = []string{}
	if raw, ok := obj[FieldSkills].([]any); ok {
		for i, item := range raw {
			s, ok := item.(string)
			if !ok {
				problems = append(problems, fmt.Sprintf("skills[%d] must be a string, got %s", i, typeName(item)))
				continue
			}
			rec.Skills = append(rec.Skills, s)
		}
	}

	rec.Conf = DefaultConfidence
	if c, ok := number(obj[FieldConf]); ok {
		if c < 0 || c > 1 {
			problems = append(problems, fmt.Sprintf("conf must be within [0,1], got %g", c))
		}
		rec.Conf = c
	}

	var extra []string
	for k := range obj {
		if !slices.Contains(fields, k) {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		slices.Sort(extra)
		problems = append(problems, fmt.Sprintf("unexpected fields: %s", strings.Join(extra, ", ")))
	}

	if len(problems) > 0 {
		return Record{}, &SchemaViolation{Problems: problems}
	}
	return rec, nil
}

func coerceText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64, int, json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// ToolSchema returns the JSON Schema offered to the model for the summary
// tool. It is the strict, un-coerced shape: six required fields and no
// additional properties.
func ToolSchema() map[string]any {
	text := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			FieldInfo:    text("Who the person is and what was discussed. Always include their full name when it was mentioned."),
			FieldContact: text("Contact details that were shared (email, phone, handle). Empty if none."),
			FieldSkills: map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Skills, technologies or areas of expertise the person mentioned.",
			},
			FieldLocation: text("Where the conversation took place or where the person is based. Empty if unknown."),
			FieldNext:     text("Agreed follow-up or next step. Empty if none."),
			FieldConf: map[string]any{
				"type":        "number",
				"minimum":     0,
				"maximum":     1,
				"description": "Confidence in the extraction from 0 to 1.",
			},
		},
		"required":             slices.Clone(fields),
		"additionalProperties": false,
	}
}

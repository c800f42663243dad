package summary

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func TestValidate_EmptyObjectCoercesToDefaults(t *testing.T) {
	t.Parallel()

	rec, err := ValidateJSON([]byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Record{Skills: []string{}, Conf: 0.5}
	if rec.Info != "" || rec.Contact != "" || rec.Location != "" || rec.Next != "" {
		t.Errorf("expected empty text fields, got %+v", rec)
	}
	if rec.Skills == nil || len(rec.Skills) != 0 {
		t.Errorf("Skills = %#v, want empty non-nil slice", rec.Skills)
	}
	if rec.Conf != want.Conf {
		t.Errorf("Conf = %v, want 0.5", rec.Conf)
	}
}

func TestValidate_Coercions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		check func(t *testing.T, rec Record)
	}{
		{"skills string", `{"skills":"x"}`, func(t *testing.T, rec Record) {
			if len(rec.Skills) != 0 {
				t.Errorf("Skills = %v, want []", rec.Skills)
			}
		}},
		{"conf string", `{"conf":"high"}`, func(t *testing.T, rec Record) {
			if rec.Conf != 0.5 {
				t.Errorf("Conf = %v, want 0.5", rec.Conf)
			}
		}},
		{"null text", `{"info":null,"next":null}`, func(t *testing.T, rec Record) {
			if rec.Info != "" || rec.Next != "" {
				t.Errorf("expected empty strings, got %+v", rec)
			}
		}},
		{"numeric contact", `{"contact":5551234}`, func(t *testing.T, rec Record) {
			if rec.Contact != "5551234" {
				t.Errorf("Contact = %q, want 5551234", rec.Contact)
			}
		}},
		{"full record", `{"info":"Dana Lee, robotics at Acme","contact":"dana@acme.io","skills":["robotics","Go"],"location":"Berlin","next":"Send deck","conf":0.9}`,
			func(t *testing.T, rec Record) {
				if rec.Info != "Dana Lee, robotics at Acme" || rec.Conf != 0.9 {
					t.Errorf("unexpected record %+v", rec)
				}
				if !slices.Equal(rec.Skills, []string{"robotics", "Go"}) {
					t.Errorf("Skills = %v", rec.Skills)
				}
			}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec, err := ValidateJSON([]byte(tt.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, rec)
		})
	}
}

func TestValidate_ViolationsAreJoined(t *testing.T) {
	t.Parallel()

	_, err := ValidateJSON([]byte(`{"skills":["ok",3],"conf":1.5,"mood":"happy","age":40}`))
	if !errors.Is(err, ErrSchemaViolation) {
		t.Fatalf("err = %v, want ErrSchemaViolation", err)
	}
	var sv *SchemaViolation
	if !errors.As(err, &sv) {
		t.Fatalf("expected *SchemaViolation, got %T", err)
	}
	if len(sv.Problems) != 3 {
		t.Fatalf("Problems = %v, want 3 entries", sv.Problems)
	}
	msg := err.Error()
	for _, want := range []string{"skills[1]", "conf must be within [0,1]", "unexpected fields: age, mood"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}
}

func TestValidate_NonObject(t *testing.T) {
	t.Parallel()

	for _, in := range []string{`[]`, `"text"`, `42`, `null`, `not json`} {
		if _, err := ValidateJSON([]byte(in)); !errors.Is(err, ErrSchemaViolation) {
			t.Errorf("ValidateJSON(%s) err = %v, want ErrSchemaViolation", in, err)
		}
	}
}

func TestToolSchema_Strict(t *testing.T) {
	t.Parallel()

	s := ToolSchema()
	if s["additionalProperties"] != false {
		t.Error("additionalProperties must be false")
	}
	req, _ := s["required"].([]string)
	if len(req) != 6 {
		t.Errorf("required = %v, want six fields", req)
	}
	props, _ := s["properties"].(map[string]any)
	for _, f := range req {
		if _, ok := props[f]; !ok {
			t.Errorf("property %q missing", f)
		}
	}
}

func TestRecord_Identity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rec  Record
		want string
	}{
		{Record{Info: "Dana Lee works at Acme on the robotics team"}, "Dana Lee"},
		{Record{Info: "Met Dana Lee at the expo"}, "Dana Lee"},
		{Record{Info: "My name is Dana Lee"}, "Dana Lee"},
		{Record{Info: "someone from sales", Contact: " sam@example.com "}, "sam@example.com"},
		{Record{}, ""},
	}
	for _, tt := range tests {
		if got := tt.rec.Identity(); got != tt.want {
			t.Errorf("Identity(%+v) = %q, want %q", tt.rec, got, tt.want)
		}
	}
}

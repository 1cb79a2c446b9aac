package notify

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type Template struct {
	Kind    TemplateKind
	Subject string
	Body    string
}

// Templates renders {{key}} placeholders. Unknown placeholders are left as-is.
type Templates struct {
	mu    sync.RWMutex
	byKey map[TemplateKind]Template
}

func NewTemplates() *Templates {
	t := &Templates{byKey: map[TemplateKind]Template{}}
	for _, tpl := range builtIn {
		t.Register(tpl)
	}
	return t
}

var builtIn = []Template{
	{
		Kind:    KindBooked,
		Subject: "New appointment on {{date}} at {{time}}",
		Body:    "Hello {{name}}, a {{kind}} appointment was booked for {{date}} at {{time}} ({{duration}} minutes). Reason: {{reason}}",
	},
	{
		Kind:    KindConfirmed,
		Subject: "Appointment confirmed for {{date}} at {{time}}",
		Body:    "Hello {{name}}, your appointment on {{date}} at {{time}} is confirmed.",
	},
	{
		Kind:    KindCancelled,
		Subject: "Appointment cancelled: {{date}} at {{time}}",
		Body:    "Hello {{name}}, the appointment on {{date}} at {{time}} has been cancelled.",
	},
	{
		Kind:    KindCompleted,
		Subject: "Appointment completed",
		Body:    "Hello {{name}}, the appointment on {{date}} at {{time}} is marked completed.",
	},
	{
		Kind:    KindRescheduled,
		Subject: "Appointment moved to {{date}} at {{time}}",
		Body:    "Hello {{name}}, the appointment on {{previous_date}} at {{previous_time}} has moved to {{date}} at {{time}}.",
	},
	{
		Kind:    KindReminder,
		Subject: "Your virtual visit starts at {{time}}",
		Body:    "Hello {{name}}, your virtual appointment starts at {{time}} on {{date}}. Join here: {{meeting_url}}",
	},
}

func (t *Templates) Register(tpl Template) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byKey[tpl.Kind] = tpl
}

func (t *Templates) Render(kind TemplateKind, fields map[string]string) (subject, body string, err error) {
	t.mu.RLock()
	tpl, ok := t.byKey[kind]
	t.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("notify: no template for %q", kind)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", fields[k])
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(tpl.Subject), r.Replace(tpl.Body), nil
}

// withName adds the recipient name unless the caller already set one.
func withName(fields map[string]string, to Target) map[string]string {
	out := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	if _, ok := out["name"]; !ok {
		name := to.Name
		if name == "" {
			name = "there"
		}
		out["name"] = name
	}
	return out
}

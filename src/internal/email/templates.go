package email

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/bookhive/bookhive/src/internal/database/models"
)

// Notices are plain text. Subjects may carry template fields too.
var noticeTemplates = map[string]struct {
	subject string
	body    string
}{
	models.EmailKindWelcome: {
		subject: "Welcome to BookHive",
		body: `Hi {{.Name}},

Your BookHive account is ready. Browse the catalog, borrow books, and
review the ones you finish.

Happy reading,
The BookHive team
`,
	},
	models.EmailKindOverdueReminder: {
		subject: "Overdue: {{.Title}}",
		body: `Hi {{.Name}},

"{{.Title}}" was due on {{.DueDate}}. Please return it so other readers
can borrow it.

The BookHive team
`,
	},
}

// renderNotice fills the subject and body templates for the given kind.
func renderNotice(kind string, data any) (subject, body string, err error) {
	tpl, ok := noticeTemplates[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown notice kind %q", kind)
	}
	if subject, err = renderTemplate("subject", tpl.subject, data); err != nil {
		return "", "", err
	}
	if body, err = renderTemplate("body", tpl.body, data); err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func renderTemplate(name, text string, data any) (string, error) {
	t, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", name, err)
	}
	return buf.String(), nil
}

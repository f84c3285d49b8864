package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	texttemplate "text/template"
)

//go:embed templates
var templateFS embed.FS

// Rendered is a message ready for delivery.
type Rendered struct {
	To      []string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
}

// Renderer turns Messages into HTML and plain text bodies.
type Renderer struct {
	html       map[Kind]*template.Template
	text       *texttemplate.Template
	senderName string
}

type templateData struct {
	*Message
	SenderName string
}

// NewRenderer parses the embedded templates. senderName is printed in
// every footer.
func NewRenderer(senderName string) (*Renderer, error) {
	base, err := template.ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parse base template: %w", err)
	}

	r := &Renderer{
		html:       make(map[Kind]*template.Template, len(Kinds)),
		senderName: senderName,
	}
	for _, k := range Kinds {
		layout, err := base.Clone()
		if err != nil {
			return nil, err
		}
		tmpl, err := layout.ParseFS(templateFS, "templates/"+string(k)+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", k, err)
		}
		r.html[k] = tmpl
	}

	r.text, err = texttemplate.ParseFS(templateFS, "templates/text.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse text template: %w", err)
	}
	return r, nil
}

// Render executes the templates for msg.
func (r *Renderer) Render(msg *Message) (*Rendered, error) {
	tmpl, ok := r.html[msg.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, msg.Kind)
	}
	data := templateData{Message: msg, SenderName: r.senderName}

	var html bytes.Buffer
	if err := tmpl.ExecuteTemplate(&html, "base.html", data); err != nil {
		return nil, fmt.Errorf("render %s html: %w", msg.Kind, err)
	}

	var text bytes.Buffer
	if err := r.text.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("render %s text: %w", msg.Kind, err)
	}

	return &Rendered{
		To:      msg.Recipients,
		ReplyTo: msg.ReplyTo,
		Subject: msg.Subject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

package render

import (
	"fmt"

	"github.com/shiftbrew/dispatch/internal/domain"
)

// MaxMessageLen is the Telegram hard limit for a single text message.
const MaxMessageLen = 4096

// Renderer turns a job payload into the message text sent over the transport.
type Renderer func(p domain.Payload) (string, error)

// Registry maps every known job kind to its renderer. The mapping is fixed
// and resolved once at startup; there is no runtime registration, so an
// unknown kind is rejected at submit time instead of failing inside a worker.
type Registry struct {
	renderers map[domain.Kind]Renderer
}

func NewRegistry() *Registry {
	return &Registry{
		renderers: map[domain.Kind]Renderer{
			domain.KindRegistrationUpdate: renderRegistrationUpdate,
			domain.KindManagerNote:        renderManagerNote,
			domain.KindNewBaristaAlert:    renderNewBaristaAlert,
			domain.KindPing:               renderPing,
		},
	}
}

// Supports reports whether the registry has a renderer for the kind.
func (r *Registry) Supports(k domain.Kind) bool {
	_, ok := r.renderers[k]
	return ok
}

// Render produces the message text for a job. The producer calls this once at
// submit time to validate the payload, and workers call it again per attempt.
func (r *Registry) Render(k domain.Kind, p domain.Payload) (string, error) {
	render, ok := r.renderers[k]
	if !ok {
		return "", domain.ErrInvalidKind
	}
	text, err := render(p)
	if err != nil {
		return "", err
	}
	if len(text) > MaxMessageLen {
		return "", domain.ErrContentTooLong
	}
	return text, nil
}

func renderRegistrationUpdate(p domain.Payload) (string, error) {
	switch p["approved"] {
	case "yes":
		return "The manager confirmed your registration.", nil
	case "no":
		return "The manager rejected your registration.", nil
	default:
		return "", fmt.Errorf("%w: approved must be \"yes\" or \"no\"", domain.ErrBadPayloadField)
	}
}

func renderManagerNote(p domain.Payload) (string, error) {
	text := p["text"]
	if text == "" {
		return "", fmt.Errorf("%w: text", domain.ErrBadPayloadField)
	}
	return text, nil
}

func renderNewBaristaAlert(p domain.Payload) (string, error) {
	for _, field := range []string{"barista_name", "barista_phone", "cafe_name"} {
		if p[field] == "" {
			return "", fmt.Errorf("%w: %s", domain.ErrBadPayloadField, field)
		}
	}
	return fmt.Sprintf(
		"⚠️ New barista registered:\n👤 Name: %s\n📞 Phone: %s\n🏠 Café: %s",
		p["barista_name"], p["barista_phone"], p["cafe_name"],
	), nil
}

func renderPing(domain.Payload) (string, error) {
	return "Notification pipeline is up.", nil
}

package agent

// Persona is the behavioral framing applied to decision-making. The set is
// closed; switching to anything outside it is a configuration error.
type Persona string

const (
	PersonaPersonal  Persona = "personal"
	PersonaResearch  Persona = "research"
	PersonaTechnical Persona = "technical"
)

// ValidPersonas returns the closed persona set, for error messages.
func ValidPersonas() []string {
	return []string{string(PersonaPersonal), string(PersonaResearch), string(PersonaTechnical)}
}

// ParsePersona validates free-form persona text against the closed set.
func ParsePersona(s string) (Persona, error) {
	switch Persona(s) {
	case PersonaPersonal, PersonaResearch, PersonaTechnical:
		return Persona(s), nil
	default:
		return "", &ConfigurationError{Field: "persona", Value: s, Valid: ValidPersonas()}
	}
}

// Framing returns the system-level behavioral framing for the persona.
func (p Persona) Framing() string {
	switch p {
	case PersonaResearch:
		return "You are a thorough research assistant. Be precise, cite what you know and what you are unsure about, and prefer looking things up over guessing."
	case PersonaTechnical:
		return "You are a pragmatic technical assistant. Be concise and concrete, show working examples when useful, and say plainly when something will not work."
	default:
		return "You are a warm, helpful personal assistant. Be friendly and practical, and remember the user's stated preferences."
	}
}

func (p Persona) String() string { return string(p) }

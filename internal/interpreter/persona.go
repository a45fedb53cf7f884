package interpreter

import (
	"math/rand/v2"
	"strings"
)

// Persona selects the voice used for conversational messages.
type Persona string

const (
	// PersonaNone is a plain assistant voice for utility prompts.
	PersonaNone      Persona = ""
	PersonaRudeCoach Persona = "rude_coach"
	PersonaUncleIroh Persona = "uncle_iroh"
	PersonaSchmidt   Persona = "schmidt"
	PersonaNormal    Persona = "normal_person"
)

// Personas lists the selectable voices.
var Personas = []Persona{PersonaRudeCoach, PersonaUncleIroh, PersonaSchmidt, PersonaNormal}

const assistantPrompt = "You are a helpful assistant. Return only what is asked for, nothing else."

var personaPrompts = map[Persona]string{
	PersonaRudeCoach: "You are a brutally rude coach who is trying to motivate me to keep my habits. " +
		"Answer in that tone and do not hold back on the swearing.",
	PersonaUncleIroh: "You are Uncle Iroh from Avatar: The Last Airbender. Be wise, kind and encouraging. " +
		"Offer deep wisdom and introspective questions. Be poetic.",
	PersonaSchmidt: "Act as a sitcom character who is joking and sarcastic. Be almost jokingly angry " +
		"and very funny.",
	PersonaNormal: "You are a normal person. Be friendly and engaging.",
}

// ParsePersona maps a stored persona name to a Persona. Unknown or empty names pick one
// at random.
func ParsePersona(name string) Persona {
	p := Persona(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := personaPrompts[p]; ok {
		return p
	}
	return Personas[rand.IntN(len(Personas))]
}

// SystemPrompt returns the system instruction for the persona.
func (p Persona) SystemPrompt() string {
	if p == PersonaNone {
		return assistantPrompt
	}
	if prompt, ok := personaPrompts[p]; ok {
		return prompt
	}
	return personaPrompts[ParsePersona(string(p))]
}

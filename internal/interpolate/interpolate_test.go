package interpolate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpolate(t *testing.T) {
	data := RecipientData{
		FullName: "Jean Martin",
		Email:    "jean@acme.fr",
		Company:  "Acme",
	}

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "double brace tokens",
			content: "Bonjour {{prenom}}, de {{entreprise}}",
			want:    "Bonjour Jean, de Acme",
		},
		{
			name:    "single brace tokens",
			content: "Bonjour {prenom}",
			want:    "Bonjour Jean",
		},
		{
			name:    "case insensitive",
			content: "Bonjour {{PRENOM}} {{Nom}}",
			want:    "Bonjour Jean Jean Martin",
		},
		{
			name:    "english aliases",
			content: "Hi {{firstname}} from {{company}}, reach me at {{email}}",
			want:    "Hi Jean from Acme, reach me at jean@acme.fr",
		},
		{
			name:    "unknown token left untouched",
			content: "Hello {{unknown_field}}",
			want:    "Hello {{unknown_field}}",
		},
		{
			name:    "no tokens",
			content: "Plain content",
			want:    "Plain content",
		},
		{
			name:    "mixed syntaxes",
			content: "{prenom} / {{prenom}}",
			want:    "Jean / Jean",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Interpolate(tt.content, data))
		})
	}
}

func TestInterpolateEmptyFullName(t *testing.T) {
	data := RecipientData{Email: "x@y.z"}
	assert.Equal(t, "Bonjour ", Interpolate("Bonjour {{prenom}}", data))
	assert.Equal(t, "", data.FirstName())
}

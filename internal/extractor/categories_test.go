package extractor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/expensabot/expensa/internal/extractor"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "food trigger", text: "pizza con amigos", want: "comida"},
		{name: "transport trigger", text: "uber al centro", want: "transporte"},
		{name: "services trigger", text: "factura de luz", want: "servicios"},
		{name: "entertainment trigger", text: "entradas de cine", want: "entretenimiento"},
		{name: "health trigger", text: "remedios de la farmacia", want: "salud"},
		{name: "home trigger", text: "expensas del mes", want: "hogar"},
		{name: "clothing trigger", text: "zapatillas nuevas", want: "ropa"},
		{name: "no trigger falls back", text: "regalo para mamá", want: extractor.DefaultCategory},
		{name: "empty text", text: "", want: extractor.DefaultCategory},
		{name: "uppercase", text: "PIZZA GRANDE", want: "comida"},
		{name: "accented trigger matches unaccented rule", text: "Café con leche", want: "comida"},
		{name: "accented médico", text: "turno con el médico", want: "salud"},
		{name: "trigger inside longer word", text: "supermercado chino", want: "comida"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractor.Categorize(tt.text))
		})
	}
}

func TestCategorize_PriorityOrder(t *testing.T) {
	// "nafta" (transporte) and "super" (comida) both match; comida is
	// declared first so it wins.
	assert.Equal(t, "comida", extractor.Categorize("nafta y super"))
}

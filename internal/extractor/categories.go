// Package extractor turns raw message text (or media) into a structured
// expense, or reports that the input is unrecognized.
package extractor

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// categoryRule maps a category tag to its trigger substrings. Rules are
// evaluated in declaration order and the first match wins, so the order
// below is the category priority order.
type categoryRule struct {
	tag      string
	triggers []string
}

// DefaultCategory is assigned when no trigger matches.
const DefaultCategory = "otros"

var categoryRules = []categoryRule{
	{tag: "comida", triggers: []string{
		"pizza", "comida", "restaurante", "almuerzo", "cena", "desayuno",
		"cafe", "supermercado", "super", "verduleria", "panaderia",
		"hamburguesa", "sushi", "helado", "delivery", "empanada", "asado",
	}},
	{tag: "transporte", triggers: []string{
		"uber", "taxi", "colectivo", "subte", "nafta", "combustible",
		"tren", "bondi", "peaje", "estacionamiento", "micro",
	}},
	{tag: "servicios", triggers: []string{
		"luz", "gas", "agua", "internet", "celular", "telefono",
		"factura", "abono", "seguro", "impuesto",
	}},
	{tag: "entretenimiento", triggers: []string{
		"cine", "netflix", "spotify", "juego", "salida", "bar",
		"fiesta", "teatro", "entrada", "recital",
	}},
	{tag: "salud", triggers: []string{
		"farmacia", "medico", "remedio", "dentista", "hospital",
		"turno", "pastilla", "obra social",
	}},
	{tag: "hogar", triggers: []string{
		"alquiler", "expensas", "ferreteria", "mueble", "limpieza",
		"pintura", "plomero", "electricista",
	}},
	{tag: "ropa", triggers: []string{
		"ropa", "zapatilla", "camisa", "pantalon", "vestido", "zapato",
		"remera", "campera",
	}},
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases and strips diacritics so "Café" matches "cafe".
func fold(s string) string {
	folded, _, err := transform.String(foldTransformer, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return folded
}

// Categorize returns the category tag for a description, matching
// diacritic-insensitively in fixed priority order.
func Categorize(text string) string {
	folded := fold(text)
	for _, rule := range categoryRules {
		for _, trigger := range rule.triggers {
			if strings.Contains(folded, trigger) {
				return rule.tag
			}
		}
	}
	return DefaultCategory
}

package extraction

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Parameter is one analyte of the catalog: its canonical code and the names it
// appears under in lab reports.
type Parameter struct {
	Code    string
	Aliases []string
}

// Catalog is the fixed list of water-quality analytes the extractor looks for.
var Catalog = []Parameter{
	{"DQO", []string{"DQO", "Demanda Química de Oxígeno", "COD"}},
	{"DBO5", []string{"DBO5", "Demanda Bioquímica de Oxígeno (5 días)", "BOD5", "DBO"}},
	{"SST", []string{"Sólidos Suspendidos Totales", "SST", "Total Suspended Solids", "TSS"}},
	{"Grasas_Aceites", []string{"Grasas y Aceites", "Oils and Grease", "GA", "Grasas", "Aceites"}},
	{"Ortofosfatos", []string{"Ortofosfatos", "PO4-P", "Fósforo Reactivo"}},
	{"Fosforo_Total", []string{"Fósforo Total", "Total Phosphorus", "Ptot", "P Total"}},
	{"Nitratos", []string{"Nitratos", "NO3-", "Nitrate", "NO3"}},
	{"Nitritos", []string{"Nitritos", "NO2-", "Nitrite", "NO2"}},
	{"N_Amoniacal", []string{"Nitrógeno Amoniacal", "NH4-N", "Ammonium", "NH4"}},
	{"N_Total", []string{"Nitrógeno Total", "Total Nitrogen", "Ntot", "N Total"}},
	{"N_Kjeldahl", []string{"Nitrógeno Kjeldahl", "TKN", "Total Kjeldahl Nitrogen"}},
	{"pH", []string{"pH", "Potencial de Hidrógeno"}},
	{"Coliformes_Totales", []string{"Coliformes Totales", "Total Coliforms"}},
	{"Coliformes_Fecales", []string{"Coliformes Fecales", "Coliformes Termotolerantes", "Fecal Coliforms"}},
	{"E_coli", []string{"Escherichia coli", "E. coli", "E coli"}},
}

var aliasIndex = buildAliasIndex(Catalog)

func buildAliasIndex(catalog []Parameter) map[string]string {
	idx := make(map[string]string)
	for _, p := range catalog {
		idx[fold(p.Code)] = p.Code
		for _, a := range p.Aliases {
			idx[fold(a)] = p.Code
		}
	}
	return idx
}

// fold lowercases, strips diacritics and collapses whitespace so that
// "Fósforo  total" and "fosforo total" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// Canonical returns the catalog code for a parameter name or alias.
func Canonical(name string) (string, bool) {
	code, ok := aliasIndex[fold(name)]
	return code, ok
}

// catalogJSON renders the catalog as an indented JSON object in catalog order.
func catalogJSON(catalog []Parameter) string {
	var b bytes.Buffer
	b.WriteString("{\n")
	for i, p := range catalog {
		key, _ := marshalNoEscape(p.Code)
		aliases, _ := marshalNoEscape(p.Aliases)
		b.WriteString("  ")
		b.Write(key)
		b.WriteString(": ")
		b.Write(aliases)
		if i < len(catalog)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString("}")
	return b.String()
}

// marshalNoEscape encodes v without HTML escaping and without the trailing newline.
func marshalNoEscape(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(b.Bytes(), "\n"), nil
}

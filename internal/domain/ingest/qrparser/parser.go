// Package qrparser decodes the payload of Portuguese AT invoice QR codes.
//
// The payload is a flat list of TAG:VALUE segments separated by '*', as
// specified by the Autoridade Tributária (Portaria 195/2020). Real-world
// payloads are messy: lowercase tags, duplicate tags, vendor-specific
// extras. The parser is deliberately forgiving and never fails; whatever
// could not be interpreted stays available in RawContent.
package qrparser

import (
	"regexp"
	"strings"
)

// Fields holds everything extracted from one QR payload. Totals and tax
// values are kept as the raw strings from the payload; interpretation is
// left to the enrichment layer.
//
// The N tag is ambiguous in the wild: the AT tables reserve it for the
// total IVA amount but several issuers use it for a free-text description.
// Both readings are preserved: TotalIVA gets the uppercased value,
// Descricao the original-case one.
type Fields struct {
	NIFEmitente    string `json:"nifEmitente,omitempty"`
	NIFAdquirente  string `json:"nifAdquirente,omitempty"`
	PaisEmitente   string `json:"paisEmitente,omitempty"`
	PaisAdquirente string `json:"paisAdquirente,omitempty"`
	TipoAdquirente string `json:"tipoAdquirente,omitempty"`

	DataFatura      string `json:"dataFatura,omitempty"`
	NumeroDocumento string `json:"numeroDocumento,omitempty"`
	CodigoDocumento string `json:"codigoDocumento,omitempty"`
	TipoDocumento   string `json:"tipoDocumento,omitempty"`

	Moeda             string `json:"moeda,omitempty"`
	ValoresIVATaxas   string `json:"valoresIVATaxas,omitempty"`
	IVAIsento         string `json:"ivaIsento,omitempty"`
	IVARegimeEspecial string `json:"ivaRegimeEspecial,omitempty"`
	Total             string `json:"total,omitempty"`
	Retencao          string `json:"retencao,omitempty"`
	BaseTributavel    string `json:"baseTributavel,omitempty"`
	IVA               string `json:"iva,omitempty"`

	BaseIVA6  string `json:"baseIva6,omitempty"`
	IVA6      string `json:"iva6,omitempty"`
	BaseIVA13 string `json:"baseIva13,omitempty"`
	IVA13     string `json:"iva13,omitempty"`
	BaseIVA23 string `json:"baseIva23,omitempty"`
	IVA23     string `json:"iva23,omitempty"`

	TotalIVA      string `json:"totalIVA,omitempty"`
	CodigoIsencao string `json:"codigoIsencao,omitempty"`
	MotivoIsencao string `json:"motivoIsencao,omitempty"`

	NomeEmitente   string `json:"nomeEmitente,omitempty"`
	MoradaEmitente string `json:"moradaEmitente,omitempty"`
	IBAN           string `json:"iban,omitempty"`
	Descricao      string `json:"descricao,omitempty"`

	RawContent string `json:"rawContent"`
}

// documentTypes maps AT document type codes to display names.
var documentTypes = map[string]string{
	"FR": "Fatura-Recibo",
	"FT": "Fatura",
	"NC": "Nota de Crédito",
	"ND": "Nota de Débito",
	"VD": "Venda a Dinheiro",
	"TV": "Talão de Venda",
	"TD": "Talão de Devolução",
	"AA": "Alienação de Ativos",
	"DA": "Devolução de Ativos",
}

var lowercaseTag = regexp.MustCompile(`\b([a-zA-Z]):`)

// Normalize uppercases tag letters that appear at a word boundary
// ("a:123" becomes "A:123") and reports whether anything changed.
// Idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) (string, bool) {
	normalized := lowercaseTag.ReplaceAllStringFunc(raw, strings.ToUpper)
	return normalized, normalized != raw
}

// IsATInvoice reports whether content looks like an AT invoice payload.
// The check is a cheap heuristic over the identification tags, meant to
// separate AT payloads from arbitrary QR content (URLs, vCards, ...).
func IsATInvoice(content string) bool {
	for _, tag := range []string{"A:", "B:", "C:", "D:", "E:", "F:", "G:", "H:", "I:"} {
		if strings.Contains(content, tag) {
			return true
		}
	}
	return false
}

// Config controls optional parser behavior.
type Config struct {
	// CompanyLookup resolves an issuer NIF to a company name when the
	// payload carries no K tag. Nil disables the lookup.
	CompanyLookup func(nif string) string
}

// Parser extracts Fields from AT QR payloads. Safe for concurrent use.
type Parser struct {
	cfg Config
}

// NewParser creates a parser with the given configuration.
func NewParser(cfg Config) *Parser {
	return &Parser{cfg: cfg}
}

// Parse decodes a QR payload. Tags match by containment on the uppercased
// segment and the last occurrence of a tag wins. Unknown segments are
// ignored. Parse never returns nil and never panics, whatever the input.
func (p *Parser) Parse(raw string) *Fields {
	f := &Fields{RawContent: raw}

	for _, line := range strings.Split(raw, "*") {
		upper := strings.ToUpper(line)

		// Identification
		if strings.Contains(upper, "A:") {
			f.NIFEmitente = cut(upper, "A:")
		}
		if strings.Contains(upper, "B:") {
			f.NIFAdquirente = cut(upper, "B:")
		}
		if strings.Contains(upper, "C:") {
			f.PaisEmitente = cut(upper, "C:")
		}
		if strings.Contains(upper, "D:") {
			f.PaisAdquirente = cut(upper, "D:")
		}
		if strings.Contains(upper, "E:") {
			f.TipoAdquirente = cut(upper, "E:")
		}

		// Document
		if strings.Contains(upper, "F:") {
			f.DataFatura = formatDate(cut(upper, "F:"))
		}
		if strings.Contains(upper, "G:") {
			f.NumeroDocumento = cut(upper, "G:")
		}
		if strings.Contains(upper, "H:") {
			f.CodigoDocumento = cut(upper, "H:")
		}
		if strings.Contains(upper, "D:") {
			code := cut(upper, "D:")
			if name, ok := documentTypes[code]; ok {
				f.TipoDocumento = name
			} else {
				f.TipoDocumento = code
			}
		}

		// Taxes and totals
		if strings.Contains(upper, "I1:") {
			f.Moeda = cut(upper, "I1:")
		}
		if strings.Contains(upper, "I2:") {
			f.ValoresIVATaxas = cut(upper, "I2:")
		}
		if strings.Contains(upper, "I3:") {
			f.IVAIsento = cut(upper, "I3:")
		}
		if strings.Contains(upper, "I4:") {
			f.IVARegimeEspecial = cut(upper, "I4:")
		}
		if strings.Contains(upper, "I5:") {
			f.Total = cut(upper, "I5:")
		}
		if strings.Contains(upper, "I6:") {
			f.Retencao = cut(upper, "I6:")
		}
		if strings.Contains(upper, "I7:") {
			f.BaseTributavel = cut(upper, "I7:")
		}
		if strings.Contains(upper, "I8:") {
			f.IVA = cut(upper, "I8:")
		}

		if strings.Contains(upper, "J1:") {
			f.BaseIVA6 = cut(upper, "J1:")
		}
		if strings.Contains(upper, "J2:") {
			f.IVA6 = cut(upper, "J2:")
		}
		if strings.Contains(upper, "J3:") {
			f.BaseIVA13 = cut(upper, "J3:")
		}
		if strings.Contains(upper, "J4:") {
			f.IVA13 = cut(upper, "J4:")
		}
		if strings.Contains(upper, "J5:") {
			f.BaseIVA23 = cut(upper, "J5:")
		}
		if strings.Contains(upper, "J6:") {
			f.IVA23 = cut(upper, "J6:")
		}

		if strings.Contains(upper, "N:") {
			f.TotalIVA = cut(upper, "N:")
		}
		if strings.Contains(upper, "O:") {
			f.Total = cut(upper, "O:")
		}

		if strings.Contains(upper, "Q:") {
			f.CodigoIsencao = cut(upper, "Q:")
		}
		if strings.Contains(upper, "R:") {
			f.MotivoIsencao = cut(upper, "R:")
		}

		// Free-text tags keep the original casing.
		if strings.Contains(line, "K:") {
			f.NomeEmitente = cut(line, "K:")
		}
		if strings.Contains(line, "L:") {
			f.MoradaEmitente = cut(line, "L:")
		}
		if strings.Contains(line, "M:") {
			f.IBAN = cut(line, "M:")
		}
		if strings.Contains(line, "N:") {
			f.Descricao = cut(line, "N:")
		}
	}

	if f.NomeEmitente == "" && f.NIFEmitente != "" && p.cfg.CompanyLookup != nil {
		f.NomeEmitente = p.cfg.CompanyLookup(f.NIFEmitente)
	}

	return f
}

// cut removes the first occurrence of tag from line and trims the rest.
func cut(line, tag string) string {
	return strings.TrimSpace(strings.Replace(line, tag, "", 1))
}

var eightDigits = regexp.MustCompile(`^\d{8}$`)

// formatDate turns YYYYMMDD into YYYY-MM-DD; anything else passes through.
func formatDate(raw string) string {
	if !eightDigits.MatchString(raw) {
		return raw
	}
	return raw[0:4] + "-" + raw[4:6] + "-" + raw[6:8]
}

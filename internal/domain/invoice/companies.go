package invoice

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/FACorreiaa/fatura-tracker/pkg/encoding"
)

// CompanyDirectory resolves issuer NIFs to company names. The static table
// covers the Grupo AreLuna companies plus utilities that show up on almost
// every Portuguese expense pile.
type CompanyDirectory struct {
	byNIF map[string]string
}

// NewCompanyDirectory returns the built-in directory.
func NewCompanyDirectory() *CompanyDirectory {
	return &CompanyDirectory{byNIF: map[string]string{
		// Grupo AreLuna
		"516562240": "Instituto AreLuna Medicina Dentária Avançada, Lda",
		"516313916": "Sociedade de Gestão Vespasian Ventures, Lda",
		"516681826": "ProStoral Laboratório de Dispositivos Médicos, Lda",
		"518899586": "Pinklegion – Unipessoal Lda",
		"518822532": "Papagaio Fotogénico – Unipessoal Lda",
		"518881555": "Nuvens Autóctones – Unipessoal Lda",

		// Common Portuguese companies
		"500000000": "EDP - Energias de Portugal",
		"501442600": "Vodafone Portugal",
		"502011475": "NOS Comunicações",
		"503504564": "MEO - Serviços de Comunicações",
		"500769405": "Galp Energia",
	}}
}

// LookupNIF returns the company name for nif, or "" when unknown.
func (d *CompanyDirectory) LookupNIF(nif string) string {
	return d.byNIF[nif]
}

// CompanyMatch is a fuzzy name lookup hit.
type CompanyMatch struct {
	NIF  string
	Name string
	Rank int // Levenshtein-based distance, lower is closer
}

// FindByName fuzzy-matches a free-text company name against the directory,
// ignoring case and accents. Returns nil when nothing matches.
func (d *CompanyDirectory) FindByName(name string) *CompanyMatch {
	query := normalizeCompanyName(name)
	if query == "" {
		return nil
	}

	var best *CompanyMatch
	for nif, company := range d.byNIF {
		target := normalizeCompanyName(company)
		if !strings.Contains(target, query) && !fuzzy.Match(query, target) {
			continue
		}
		rank := fuzzy.RankMatch(query, target)
		if rank < 0 {
			continue
		}
		if best == nil || rank < best.Rank {
			best = &CompanyMatch{NIF: nif, Name: company, Rank: rank}
		}
	}
	return best
}

func normalizeCompanyName(s string) string {
	return strings.ToLower(encoding.RemoveAccents(strings.TrimSpace(s)))
}

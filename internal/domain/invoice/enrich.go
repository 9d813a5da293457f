package invoice

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/cloudflare/ahocorasick"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/fatura-tracker/internal/domain/ingest/qrparser"
	"github.com/FACorreiaa/fatura-tracker/pkg/ptnum"
)

// paymentTermDays is the default payment term applied when the invoice
// carries no due date of its own.
const paymentTermDays = 30

// DueDate returns dataFatura plus the default payment term, formatted as
// YYYY-MM-DD. Invoices without a parseable date get no due date; making
// one up would mark them overdue on the nightly scan.
func DueDate(dataFatura string) string {
	base, err := time.Parse("2006-01-02", dataFatura)
	if err != nil {
		return ""
	}
	return base.AddDate(0, 0, paymentTermDays).Format("2006-01-02")
}

var (
	ibanPT      = regexp.MustCompile(`PT50\d{21}|PT\d{23}`)
	ibanLabeled = regexp.MustCompile(`(?i)IBAN[:\s]*([A-Z]{2}\d{2}[A-Z0-9]{4}\d{7}[A-Z0-9]{1,16})`)
	ibanBare    = regexp.MustCompile(`PT[0-9]{21}`)
)

// ExtractIBAN finds a payment IBAN for the invoice: the M tag when
// present, otherwise pattern scans over the raw payload.
func ExtractIBAN(f *qrparser.Fields) string {
	if f.IBAN != "" {
		return f.IBAN
	}
	if f.RawContent == "" {
		return ""
	}
	if m := ibanPT.FindString(f.RawContent); m != "" {
		return m
	}
	if m := ibanLabeled.FindStringSubmatch(f.RawContent); m != nil {
		return m[1]
	}
	return ibanBare.FindString(f.RawContent)
}

// PaymentReference derives a deterministic reference from invoice fields:
// last four digits of the issuer NIF, last three of the document number
// and the last six digits of the invoice date, zero-filled when missing.
func PaymentReference(f *qrparser.Fields) string {
	nif := lastN(f.NIFEmitente, 4, "0000")
	doc := lastN(f.NumeroDocumento, 3, "000")
	date := lastN(strings.ReplaceAll(f.DataFatura, "-", ""), 6, "")
	if date == "" {
		date = lastN(time.Now().Format("20060102"), 6, "")
	}
	return nif + doc + date
}

// RandomPaymentReference builds a dated reference with a random suffix,
// for manual payments where no invoice fields are available. Distinct from
// PaymentReference on purpose: the two were never interchangeable.
func RandomPaymentReference() string {
	return fmt.Sprintf("FAT%s%03d", time.Now().Format("060102"), rand.Intn(1000))
}

func lastN(s string, n int, fallback string) string {
	if s == "" {
		return fallback
	}
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// CategorySuggestion is the outcome of the categorization cascade.
type CategorySuggestion struct {
	Category  string `json:"categoria"`
	Reasoning string `json:"justificacao"`
}

type keywordRule struct {
	words     []string
	category  string
	reasoning string
}

// keywordRules are checked in order; the first rule with a hit wins the
// description step.
var keywordRules = []keywordRule{
	{[]string{"combustivel", "gasolina"}, "viagens-deslocacoes", "Combustível identificado - viagens e deslocações"},
	{[]string{"telefone", "internet"}, "comunicacoes", "Comunicações identificadas"},
	{[]string{"seguro"}, "seguros", "Seguro identificado"},
	{[]string{"marketing", "publicidade"}, "marketing-publicidade", "Marketing/Publicidade identificado"},
}

// Categorizer suggests an accounting category from invoice amount, issuer
// NIF class and description keywords. Later steps override earlier ones;
// the keyword step uses an Aho-Corasick matcher built once at startup.
type Categorizer struct {
	matcher    *ahocorasick.Matcher
	wordToRule []int
}

// NewCategorizer builds the keyword matcher.
func NewCategorizer() *Categorizer {
	var dict []string
	var wordToRule []int
	for i, rule := range keywordRules {
		for _, w := range rule.words {
			dict = append(dict, w)
			wordToRule = append(wordToRule, i)
		}
	}
	return &Categorizer{
		matcher:    ahocorasick.NewStringMatcher(dict),
		wordToRule: wordToRule,
	}
}

// Suggest runs the cascade: amount thresholds, then NIF prefix, then
// description keywords. Defaults to "outros".
func (c *Categorizer) Suggest(f *qrparser.Fields) CategorySuggestion {
	amount := ptnum.ParseOrZero(f.Total)
	suggestion := CategorySuggestion{Category: "outros"}

	switch {
	case amount.GreaterThan(decimal.NewFromInt(10000)):
		suggestion = CategorySuggestion{"equipamentos", "Valor elevado - possível aquisição de equipamento"}
	case amount.GreaterThan(decimal.NewFromInt(5000)):
		suggestion = CategorySuggestion{"fornecimentos-servicos-externos", "Valor médio-alto - serviços ou fornecimentos"}
	case amount.GreaterThan(decimal.NewFromInt(1000)):
		suggestion = CategorySuggestion{"servicos-profissionais", "Valor médio - serviços profissionais"}
	case amount.LessThan(decimal.NewFromInt(100)):
		suggestion = CategorySuggestion{"comunicacoes", "Valor baixo - comunicações ou despesas menores"}
	}

	switch {
	case strings.HasPrefix(f.NIFEmitente, "5"):
		suggestion = CategorySuggestion{"servicos-profissionais", "NIF de pessoa coletiva - serviços profissionais"}
	case strings.HasPrefix(f.NIFEmitente, "2"):
		suggestion = CategorySuggestion{"fornecimentos-servicos-externos", "NIF empresarial - fornecimentos e serviços"}
	}

	if rule := c.matchKeywords(f.Descricao); rule != nil {
		suggestion = CategorySuggestion{rule.category, rule.reasoning}
	}

	return suggestion
}

func (c *Categorizer) matchKeywords(description string) *keywordRule {
	if description == "" {
		return nil
	}
	hits := c.matcher.Match([]byte(strings.ToLower(description)))
	if len(hits) == 0 {
		return nil
	}
	best := -1
	for _, h := range hits {
		rule := c.wordToRule[h]
		if best == -1 || rule < best {
			best = rule
		}
	}
	return &keywordRules[best]
}

// categoryNames maps category slugs to display names.
var categoryNames = map[string]string{
	"fornecimentos-servicos-externos": "Fornecimentos e Serviços Externos",
	"mercadorias":                     "Mercadorias",
	"materias-primas":                 "Matérias-primas",
	"equipamentos":                    "Equipamentos",
	"servicos-profissionais":          "Serviços Profissionais",
	"marketing-publicidade":           "Marketing e Publicidade",
	"viagens-deslocacoes":             "Viagens e Deslocações",
	"comunicacoes":                    "Comunicações",
	"seguros":                         "Seguros",
	"outros":                          "Outros",
}

// CategoryDisplayName returns the human-readable name for a category slug,
// falling back to the slug itself.
func CategoryDisplayName(slug string) string {
	if name, ok := categoryNames[slug]; ok {
		return name
	}
	return slug
}

// AutoEnableFlags marks the follow-up workflows an invoice should trigger.
type AutoEnableFlags struct {
	IVAControl      bool `json:"controleIVA"`
	AccountsPayable bool `json:"contasPagar"`
	Banking         bool `json:"integracaoBancaria"`
	Alerts          bool `json:"criarAlerta"`
}

// AutoEnable derives the workflow flags from invoice amounts.
func AutoEnable(f *qrparser.Fields) AutoEnableFlags {
	amount := ptnum.ParseOrZero(f.Total)
	return AutoEnableFlags{
		IVAControl:      ptnum.ParseOrZero(f.IVA).GreaterThan(decimal.Zero),
		AccountsPayable: amount.GreaterThan(decimal.NewFromInt(500)),
		Banking:         amount.GreaterThan(decimal.NewFromInt(100)),
		Alerts:          amount.GreaterThan(decimal.NewFromInt(1000)),
	}
}

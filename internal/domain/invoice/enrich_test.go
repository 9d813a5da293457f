package invoice

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/fatura-tracker/internal/domain/ingest/qrparser"
)

func TestDueDate(t *testing.T) {
	assert.Equal(t, "2025-11-01", DueDate("2025-10-02"))
	assert.Equal(t, "2025-01-30", DueDate("2024-12-31"))

	// Unparseable or missing dates leave the due date unset so the
	// overdue scan never flags them.
	assert.Empty(t, DueDate("garbage"))
	assert.Empty(t, DueDate("20251002"))
	assert.Empty(t, DueDate(""))
}

func TestExtractIBAN(t *testing.T) {
	tests := []struct {
		name   string
		fields qrparser.Fields
		want   string
	}{
		{
			"explicit M tag wins",
			qrparser.Fields{IBAN: "PT50000201231234567890154", RawContent: "M:PT50000201231234567890154"},
			"PT50000201231234567890154",
		},
		{
			"PT50 pattern in raw content",
			qrparser.Fields{RawContent: "A:123*PT50000201231234567890154*O:10"},
			"PT50000201231234567890154",
		},
		{
			"labeled IBAN",
			qrparser.Fields{RawContent: "pagamento IBAN: GB29NWBK60161331926819"},
			"GB29NWBK60161331926819",
		},
		{
			"bare PT IBAN",
			qrparser.Fields{RawContent: "ref PT47000201231234567890154 fim"},
			"PT47000201231234567890154",
		},
		{
			"nothing found",
			qrparser.Fields{RawContent: "A:123456789*O:10.00"},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractIBAN(&tt.fields))
		})
	}
}

func TestPaymentReference(t *testing.T) {
	f := &qrparser.Fields{
		NIFEmitente:     "516562240",
		NumeroDocumento: "FT 2025/001234",
		DataFatura:      "2025-10-02",
	}
	assert.Equal(t, "2240234251002", PaymentReference(f))

	// Defaults are zero-filled when fields are missing.
	ref := PaymentReference(&qrparser.Fields{})
	assert.True(t, strings.HasPrefix(ref, "0000000"))
	assert.Len(t, ref, 13)
}

func TestRandomPaymentReference(t *testing.T) {
	ref := RandomPaymentReference()
	assert.Regexp(t, `^FAT\d{6}\d{3}$`, ref)
}

func TestSuggestCategoryAmounts(t *testing.T) {
	c := NewCategorizer()
	tests := []struct {
		total string
		want  string
	}{
		{"15000.00", "equipamentos"},
		{"7500.00", "fornecimentos-servicos-externos"},
		{"2500.00", "servicos-profissionais"},
		{"50.00", "comunicacoes"},
		{"500.00", "outros"},
	}
	for _, tt := range tests {
		got := c.Suggest(&qrparser.Fields{Total: tt.total})
		assert.Equal(t, tt.want, got.Category, "total %s", tt.total)
	}
}

// Later cascade steps override earlier ones: a NIF prefix beats the
// amount, a description keyword beats both.
func TestSuggestCategoryPriority(t *testing.T) {
	c := NewCategorizer()

	got := c.Suggest(&qrparser.Fields{Total: "15000.00", NIFEmitente: "516562240"})
	assert.Equal(t, "servicos-profissionais", got.Category)

	got = c.Suggest(&qrparser.Fields{
		Total:       "15000.00",
		NIFEmitente: "516562240",
		Descricao:   "Abastecimento combustivel frota",
	})
	assert.Equal(t, "viagens-deslocacoes", got.Category)
	assert.NotEmpty(t, got.Reasoning)
}

func TestSuggestCategoryKeywords(t *testing.T) {
	c := NewCategorizer()
	tests := []struct {
		descricao string
		want      string
	}{
		{"Telefone e internet escritório", "comunicacoes"},
		{"Seguro multirriscos", "seguros"},
		{"Campanha publicidade online", "marketing-publicidade"},
		{"Gasolina 95", "viagens-deslocacoes"},
	}
	for _, tt := range tests {
		got := c.Suggest(&qrparser.Fields{Descricao: tt.descricao})
		assert.Equal(t, tt.want, got.Category, "descricao %q", tt.descricao)
	}
}

func TestSuggestCategoryDefault(t *testing.T) {
	c := NewCategorizer()
	got := c.Suggest(&qrparser.Fields{Total: "500.00", NIFEmitente: "980000000"})
	assert.Equal(t, "outros", got.Category)
}

func TestCategoryDisplayName(t *testing.T) {
	assert.Equal(t, "Viagens e Deslocações", CategoryDisplayName("viagens-deslocacoes"))
	assert.Equal(t, "desconhecida", CategoryDisplayName("desconhecida"))
}

func TestAutoEnable(t *testing.T) {
	flags := AutoEnable(&qrparser.Fields{Total: "1500.00", IVA: "345.00"})
	assert.True(t, flags.IVAControl)
	assert.True(t, flags.AccountsPayable)
	assert.True(t, flags.Banking)
	assert.True(t, flags.Alerts)

	flags = AutoEnable(&qrparser.Fields{Total: "250.00"})
	assert.False(t, flags.IVAControl)
	assert.False(t, flags.AccountsPayable)
	assert.True(t, flags.Banking)
	assert.False(t, flags.Alerts)

	flags = AutoEnable(&qrparser.Fields{Total: "50.00"})
	assert.False(t, flags.Banking)
}

func TestCompanyDirectory(t *testing.T) {
	d := NewCompanyDirectory()

	assert.Equal(t, "EDP - Energias de Portugal", d.LookupNIF("500000000"))
	assert.Equal(t, "Instituto AreLuna Medicina Dentária Avançada, Lda", d.LookupNIF("516562240"))
	assert.Empty(t, d.LookupNIF("999999999"))
}

func TestCompanyDirectoryFindByName(t *testing.T) {
	d := NewCompanyDirectory()

	m := d.FindByName("vodafone")
	require.NotNil(t, m)
	assert.Equal(t, "501442600", m.NIF)

	// Accent-insensitive.
	m = d.FindByName("papagaio fotogenico")
	require.NotNil(t, m)
	assert.Equal(t, "518822532", m.NIF)

	assert.Nil(t, d.FindByName("empresa inexistente xyz"))
	assert.Nil(t, d.FindByName(""))
}

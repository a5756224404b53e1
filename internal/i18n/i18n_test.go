package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "CreateExamButton"); got != "Create exam" {
		t.Errorf("T(CreateExamButton) = %q, want 'Create exam'", got)
	}
	if got := T(ctx, "ErrExamNameRequired"); got != "Please enter a name for the exam." {
		t.Errorf("T(ErrExamNameRequired) = %q", got)
	}
}

func TestTranslatePortuguese(t *testing.T) {
	ctx := initLang(t, "pt")

	if got := T(ctx, "CreateExamButton"); got != "Criar Exame" {
		t.Errorf("T(CreateExamButton) = %q, want 'Criar Exame'", got)
	}
	if got := T(ctx, "ErrGenerateReport"); got != "Erro ao gerar relatório. Tente novamente." {
		t.Errorf("T(ErrGenerateReport) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "FilesSelected", 1); got != "1 file selected" {
		t.Errorf("Tp(FilesSelected, 1) = %q", got)
	}
	if got := Tp(ctx, "FilesSelected", 3); got != "3 files selected" {
		t.Errorf("Tp(FilesSelected, 3) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "QuestionAnswer", map[string]any{"Question": "Q1", "Choice": "A"})
	if got != "Q1: A" {
		t.Errorf("Td(QuestionAnswer) = %q, want 'Q1: A'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestLocalesHaveSameKeys(t *testing.T) {
	en := readKeys(t, "locales/en.json")
	pt := readKeys(t, "locales/pt.json")
	for k := range en {
		if !pt[k] {
			t.Errorf("pt.json missing %q", k)
		}
	}
	for k := range pt {
		if !en[k] {
			t.Errorf("en.json missing %q", k)
		}
	}
}

func readKeys(t *testing.T, name string) map[string]bool {
	t.Helper()
	data, err := localeFS.ReadFile(name)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	var m map[string]any
	if err := jsonUnmarshal(data, &m); err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	keys := make(map[string]bool, len(m))
	for k := range m {
		keys[k] = true
	}
	return keys
}

func TestMatch(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	tests := []struct {
		prefs []string
		want  string
	}{
		{nil, "en"},
		{[]string{"", "", "pt-BR,pt;q=0.9,en;q=0.8"}, "pt"},
		{[]string{"", "", "fr-FR"}, "en"},
		{[]string{"en", "", "pt-BR"}, "en"},
		{[]string{"", "pt", "en-US"}, "pt"},
		{[]string{"???", "", ""}, "en"},
	}
	for _, tt := range tests {
		if got := Match(tt.prefs...); got != tt.want {
			t.Errorf("Match(%q) = %q, want %q", tt.prefs, got, tt.want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	var got string
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "Pending") + "|" + Lang(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "pt-BR")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Pendente|pt" {
		t.Errorf("Accept-Language: got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/?lang=en", nil)
	req.Header.Set("Accept-Language", "pt-BR")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got != "Pending|en" {
		t.Errorf("query: got %q", got)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName || cookies[0].Value != "en" {
		t.Errorf("cookies = %v", cookies)
	}
}

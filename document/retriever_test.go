package document

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"faturas/apiclient"
	"faturas/distributor"
	"faturas/model"
	"faturas/provider"
	"faturas/storage"
)

func setup(t *testing.T, h http.HandlerFunc, id int) (*Retriever, Target, string) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	logger, _ := test.NewNullLogger()
	client := apiclient.New(apiclient.Policy{MaxAttempts: 1}, apiclient.WithLogger(logger))
	base := t.TempDir()
	store, err := storage.New(base)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}

	profile, _ := distributor.Lookup(id)
	profile = profile.WithHost(srv.URL, "")
	target := Target{
		Account: provider.Account{
			Record:   model.AccountRecord{DistributorID: id, AccountCode: "123", LoginID: "12345678900"},
			Profile:  profile,
			Unit:     "0000000123",
			Protocol: "SF-1",
		},
		Adapter: provider.For(profile),
		Token:   "tok",
		Invoice: model.Invoice{Reference: "2025/10", Number: "330012345678"},
		Period:  model.Period{Year: 2025, Month: 10},
	}
	return NewRetriever(client, store, logger), target, base
}

func TestFetchAndStorePDF(t *testing.T) {
	var gotPath string
	h := func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.URL.Query().Get("documentoSolicitante") == "" {
			t.Errorf("standard family must send documentoSolicitante")
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 fake"))
	}
	r, target, base := setup(t, h, 11)

	path, res := r.FetchAndStore(context.Background(), target)
	if !res.OK() {
		t.Fatalf("unexpected failure: %+v", res)
	}
	want := filepath.Join(base, "2025-10", "COELBA_000000000123_2025-10.pdf")
	if path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "%PDF-1.4 fake" {
		t.Fatalf("unexpected file content %q (%v)", data, err)
	}
	if gotPath != "/multilogin/2.0.0/servicos/faturas/330012345678/pdf" {
		t.Fatalf("unexpected document path %q", gotPath)
	}
}

func TestFetchAndStoreBase64JSON(t *testing.T) {
	for _, field := range []string{"fileData", "arquivo"} {
		t.Run(field, func(t *testing.T) {
			encoded := base64.StdEncoding.EncodeToString([]byte("%PDF-from-json"))
			h := func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"` + field + `":"` + encoded + `"}`))
			}
			r, target, _ := setup(t, h, 15)

			path, res := r.FetchAndStore(context.Background(), target)
			if !res.OK() {
				t.Fatalf("unexpected failure: %+v", res)
			}
			if !strings.HasSuffix(path, "BRASILIA_000000000123_2025-10.pdf") {
				t.Fatalf("unexpected path %q", path)
			}
			data, _ := os.ReadFile(path)
			if string(data) != "%PDF-from-json" {
				t.Fatalf("unexpected decoded content %q", data)
			}
		})
	}
}

func TestFetchAndStoreFailures(t *testing.T) {
	cases := []struct {
		name        string
		status      int
		contentType string
		body        string
		want        model.Outcome
	}{
		{"html page", http.StatusOK, "text/html", "<html>login</html>", model.OutcomeRetained},
		{"json without payload", http.StatusOK, "application/json", `{"mensagem":"processando"}`, model.OutcomeRetained},
		{"unavailable", http.StatusBadRequest, "application/json", `{"mensagem":"Fatura indisponível no canal digital"}`, model.OutcomeInvoiceUnavailable},
		{"mismatch", http.StatusBadRequest, "application/json", `{"mensagem":"UC não pertence ao documento"}`, model.OutcomeInvalidCredentials},
		{"server error", http.StatusInternalServerError, "text/plain", "erro", model.OutcomeRetained},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tc.contentType)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}
			r, target, base := setup(t, h, 11)

			path, res := r.FetchAndStore(context.Background(), target)
			if res.Outcome != tc.want {
				t.Fatalf("got %q (%s), want %q", res.Outcome, res.Detail, tc.want)
			}
			if path != "" {
				t.Fatalf("no path expected on failure, got %q", path)
			}
			if _, err := os.Stat(filepath.Join(base, "2025-10")); !os.IsNotExist(err) {
				t.Fatalf("no file may be written on failure")
			}
		})
	}
}

func TestFetchAndStoreRequiresInvoiceNumber(t *testing.T) {
	r, target, _ := setup(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected")
	}, 11)
	target.Invoice.Number = ""
	if _, res := r.FetchAndStore(context.Background(), target); res.Outcome != model.OutcomeRetained {
		t.Fatalf("got %q, want retained", res.Outcome)
	}
}

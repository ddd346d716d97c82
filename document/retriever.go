package document

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"faturas/apiclient"
	"faturas/model"
	"faturas/provider"
	"faturas/storage"
)

const (
	contentPDF  = "application/pdf"
	contentJSON = "application/json"
)

// base64Fields are the JSON fields that may carry the encoded document.
var base64Fields = []string{"fileData", "arquivo"}

// Target identifies one invoice to download for a resolved account.
type Target struct {
	Account provider.Account
	Adapter provider.Adapter
	Token   string
	Invoice model.Invoice
	Period  model.Period
}

type Retriever struct {
	client *apiclient.Client
	store  *storage.Local
	log    logrus.FieldLogger
}

func NewRetriever(client *apiclient.Client, store *storage.Local, log logrus.FieldLogger) *Retriever {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Retriever{client: client, store: store, log: log}
}

// FetchAndStore downloads the invoice document and writes it to its
// deterministic path. It returns the written path, or a failed Result when
// nothing was written.
func (r *Retriever) FetchAndStore(ctx context.Context, t Target) (string, model.Result) {
	profile := t.Account.Profile
	log := r.log.WithFields(logrus.Fields{
		"distributor": profile.Name,
		"account":     t.Account.Record.PaddedCode(),
		"period":      t.Period.String(),
		"invoice":     t.Invoice.Number,
	})

	if strings.TrimSpace(t.Invoice.Number) == "" {
		return "", model.Fail(model.OutcomeRetained, "document: invoice has no number")
	}

	resp, err := r.client.Get(ctx, provider.DocumentURL(profile, t.Invoice), provider.AuthHeader(t.Token),
		t.Adapter.PDFParams(t.Account, t.Invoice), provider.SkipLiterals())
	if err != nil {
		log.WithError(err).Warn("document request failed")
		return "", model.Fail(model.OutcomeSystemError, fmt.Sprintf("document: %v", err))
	}
	if !resp.OK() {
		return "", classifyDocumentFailure(resp, fmt.Sprintf("document: status %d", resp.StatusCode))
	}

	data, res := decodeDocument(resp)
	if !res.OK() {
		log.WithField("content_type", resp.ContentType).Warn(res.Detail)
		return "", res
	}

	key := storage.DocumentPath(profile.Name, t.Account.Record.AccountCode, t.Period)
	path, err := r.store.Save(ctx, key, data)
	if err != nil {
		log.WithError(err).Error("document write failed")
		return "", model.Fail(model.OutcomeSystemError, fmt.Sprintf("document: %v", err))
	}
	log.WithField("path", path).Info("document stored")
	return path, model.Result{}
}

func decodeDocument(resp *apiclient.Response) ([]byte, model.Result) {
	switch resp.ContentType {
	case contentPDF:
		if len(resp.Body) == 0 {
			return nil, model.Fail(model.OutcomeRetained, "document: empty pdf body")
		}
		return resp.Body, model.Result{}
	case contentJSON:
		data, err := decodeBase64Payload(resp.Body)
		if err != nil {
			return nil, classifyDocumentFailure(resp, fmt.Sprintf("document: %v", err))
		}
		return data, model.Result{}
	default:
		return nil, classifyDocumentFailure(resp, fmt.Sprintf("document: unexpected content type %q", resp.ContentType))
	}
}

// classifyDocumentFailure only distinguishes the body markers; a document
// that could not be obtained for any other reason is retained for review.
func classifyDocumentFailure(resp *apiclient.Response, detail string) model.Result {
	failed := provider.ClassifyFailure("document", resp)
	if failed.Outcome == model.OutcomeSystemError {
		failed.Outcome = model.OutcomeRetained
	}
	failed.Detail = detail
	return failed
}

func decodeBase64Payload(body []byte) ([]byte, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("decode json payload: %w", err)
	}
	for _, field := range base64Fields {
		raw, ok := m[field]
		if !ok {
			continue
		}
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil || strings.TrimSpace(encoded) == "" {
			continue
		}
		if i := strings.Index(encoded, "base64,"); i >= 0 {
			encoded = encoded[i+len("base64,"):]
		}
		encoded = strings.TrimSpace(encoded)
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", field, err)
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, fmt.Errorf("%s is empty", field)
		}
		return data, nil
	}
	return nil, fmt.Errorf("no base64 document field")
}

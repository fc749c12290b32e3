package external

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/clinical-note-classifier/internal/domain"
)

const (
	fhirJSONContentType = "application/fhir+json"
	maxBundleBytes      = 32 << 20
)

// FHIRClient searches DocumentReference resources on a FHIR R4 server
type FHIRClient struct {
	baseURL      string
	httpClient   *http.Client
	rateLimit    *rate.Limiter
	retryCount   int
	retryBackoff time.Duration
	logger       *logrus.Logger
}

// fhirBundle is the subset of a FHIR searchset Bundle the client reads
type fhirBundle struct {
	ResourceType string `json:"resourceType"`
	Total        *int   `json:"total,omitempty"`
	Entry        []struct {
		Resource json.RawMessage `json:"resource"`
	} `json:"entry"`
}

// documentReference is the subset of a FHIR DocumentReference the client reads
type documentReference struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
	Status       string `json:"status"`
	Date         string `json:"date"`
	Content      []struct {
		Attachment struct {
			ContentType string `json:"contentType"`
			Data        string `json:"data"`
			URL         string `json:"url"`
		} `json:"attachment"`
	} `json:"content"`
}

// NewFHIRClient creates a new FHIR document store client
func NewFHIRClient(config domain.DocumentStoreConfig, logger *logrus.Logger) *FHIRClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://server.fire.ly"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 10
	}
	if config.RetryBackoff == 0 {
		config.RetryBackoff = 200 * time.Millisecond
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &FHIRClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit:    rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		retryCount:   config.RetryCount,
		retryBackoff: config.RetryBackoff,
		logger:       logger,
	}
}

// FetchLatestDocument searches for the patient's most recent DocumentReference
// of the given LOINC type and decodes its inline attachment.
func (c *FHIRClient) FetchLatestDocument(ctx context.Context, patientID, typeCode string) (*domain.DischargeSummary, error) {
	params := url.Values{
		"subject": {"Patient/" + patientID},
		"type":    {domain.LOINCSystem + "|" + typeCode},
		"_sort":   {"-date"},
		"_count":  {"1"},
	}
	searchURL := fmt.Sprintf("%s/DocumentReference?%s", c.baseURL, params.Encode())

	bundle, err := c.search(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	for _, entry := range bundle.Entry {
		var doc documentReference
		if err := json.Unmarshal(entry.Resource, &doc); err != nil {
			return nil, fmt.Errorf("%w: parsing bundle entry: %v", ErrRetrievalFailed, err)
		}
		if doc.ResourceType != "DocumentReference" {
			continue
		}
		return decodeDocument(patientID, &doc)
	}

	return nil, ErrDocumentNotFound
}

// search runs the query, retrying transient failures
func (c *FHIRClient) search(ctx context.Context, searchURL string) (*fhirBundle, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"error":   lastErr,
			}).Warn("Retrying document store search")

			select {
			case <-time.After(c.retryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrRetrievalFailed, ctx.Err())
			}
		}

		if err := c.rateLimit.Wait(ctx); err != nil {
			// Wait fails early when the next token lies past the deadline
			cause := ctx.Err()
			if cause == nil {
				cause = context.DeadlineExceeded
			}
			return nil, fmt.Errorf("%w: %w: %v", ErrRateLimited, cause, err)
		}

		bundle, retryable, err := c.doSearch(ctx, searchURL)
		if err == nil {
			return bundle, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

func (c *FHIRClient) doSearch(ctx context.Context, searchURL string) (*fhirBundle, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: creating search request: %w", ErrRetrievalFailed, err)
	}
	req.Header.Set("Accept", fhirJSONContentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("%w: executing search request: %w", ErrRetrievalFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retryable, fmt.Errorf("%w: document store returned status %d", ErrRetrievalFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBundleBytes))
	if err != nil {
		return nil, true, fmt.Errorf("%w: reading search response: %w", ErrRetrievalFailed, err)
	}

	var bundle fhirBundle
	if err := json.Unmarshal(body, &bundle); err != nil {
		return nil, false, fmt.Errorf("%w: parsing search response: %v", ErrRetrievalFailed, err)
	}
	if bundle.ResourceType != "Bundle" {
		return nil, false, fmt.Errorf("%w: expected Bundle, got %q", ErrRetrievalFailed, bundle.ResourceType)
	}

	return &bundle, false, nil
}

// decodeDocument extracts the base64 attachment of the first content entry
func decodeDocument(patientID string, doc *documentReference) (*domain.DischargeSummary, error) {
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: document %s has no content", ErrRetrievalFailed, doc.ID)
	}
	attachment := doc.Content[0].Attachment
	if attachment.Data == "" {
		return nil, fmt.Errorf("%w: document %s has no inline attachment data", ErrRetrievalFailed, doc.ID)
	}

	raw, err := decodeBase64(attachment.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: document %s: decoding attachment: %v", ErrRetrievalFailed, doc.ID, err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: document %s: attachment is not valid UTF-8", ErrRetrievalFailed, doc.ID)
	}

	return &domain.DischargeSummary{
		PatientID:   patientID,
		DocumentID:  doc.ID,
		Date:        parseFHIRDate(doc.Date),
		ContentType: attachment.ContentType,
		Text:        string(raw),
	}, nil
}

func decodeBase64(data string) ([]byte, error) {
	compact := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, data)

	raw, err := base64.StdEncoding.DecodeString(compact)
	if err == nil {
		return raw, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(compact); rawErr == nil {
		return raw, nil
	}
	return nil, err
}

func parseFHIRDate(value string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

// IsTimeout reports whether err was caused by a deadline or client timeout
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}

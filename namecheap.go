package ddns

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const namecheapUpdateURL = "https://dynamicdns.park-your-domain.com/update"

const namecheapTimeout = 10 * time.Second

// UsingNamecheap registers Namecheap's dynamic DNS service as the update provider.
// password is the Dynamic DNS password from the domain's Advanced DNS panel,
// not the account password.
func UsingNamecheap(password string) clientOption {
	return func(c *client) error {
		if password == "" {
			return errors.New("ddns.UsingNamecheap: password cannot be empty")
		}
		c.Provider = &namecheapProvider{
			password: password,
			baseURL:  namecheapUpdateURL,
			logger:   zerolog.Nop(),
		}
		return nil
	}
}

type namecheapProvider struct {
	httpClient *http.Client
	baseURL    string
	domain     string
	password   string
	logger     zerolog.Logger
}

// UpdateRecord implements ddns.Provider.
//
// Namecheap returns HTTP 200 even for logical failures,
// so the response body is read in full regardless of status and interpreted;
// see interpretUpdateResponse.
// The raw body is only logged at trace level because response strings can
// echo request details back.
func (nc *namecheapProvider) UpdateRecord(ctx context.Context, host string, addr netip.Addr) error {
	u, err := url.Parse(nc.baseURL)
	if err != nil {
		return fmt.Errorf("error parsing update URL: %w", err)
	}
	q := url.Values{}
	q.Set("host", host)
	q.Set("domain", nc.domain)
	q.Set("password", nc.password)
	q.Set("ip", addr.String())
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, namecheapTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("error creating update request: %w", err)
	}

	httpclient := nc.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}
	resp, err := httpclient.Do(req)
	if err != nil {
		return fmt.Errorf("update request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading update response: %w", err)
	}

	if err := interpretUpdateResponse(body); err != nil {
		nc.logger.Error().
			Str("host", host).
			Str("status", resp.Status).
			Err(err).
			Msg("dynamic DNS update failed - this usually means a wrong domain, host, or password")
		nc.logger.Trace().Str("host", host).Str("body", string(body)).Msg("full update response")
		return err
	}

	nc.logger.Info().
		Str("host", host).
		Str("status", resp.Status).
		Str("body_preview", preview(string(body), 160)).
		Msg("dynamic DNS update succeeded")
	nc.logger.Trace().Str("host", host).Str("body", string(body)).Msg("full update response")
	return nil
}

// UpdateError is a logical failure reported inside an update response body.
// Messages holds the diagnostics extracted from the response in document
// order and is never empty.
type UpdateError struct {
	Messages []string
}

func (e *UpdateError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// interpretUpdateResponse classifies a Namecheap dynamic DNS response body.
//
// The body is XML carrying a numeric ErrCount field plus zero or more
// freeform message fields under varying tag names (Err1, Err2, ...,
// Description, ResponseString); which of those are populated is not
// guaranteed. ErrCount is the sole source of truth:
// zero or absent means success even when message tags carry text,
// nonzero means failure even when no messages could be extracted.
// Message tags are best-effort diagnostics only.
//
// Returns nil on success, and a *UpdateError on logical failure or
// malformed XML.
func interpretUpdateResponse(body []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(body))

	// currentTag is the name of the innermost open element,
	// cleared on end tags so trailing character data is not misattributed.
	var currentTag string
	var errCount uint64
	var errMessages, descriptions, responseStrings []string

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &UpdateError{Messages: []string{fmt.Sprintf("failed to parse update response XML: %v", err)}}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			currentTag = t.Name.Local
		case xml.EndElement:
			currentTag = ""
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" || currentTag == "" {
				continue
			}
			switch {
			case currentTag == "ErrCount":
				// only a cleanly parsed count is kept; the last one seen wins
				if n, perr := strconv.ParseUint(text, 10, 32); perr == nil {
					errCount = n
				}
			case strings.HasPrefix(currentTag, "Err"):
				errMessages = append(errMessages, text)
			case currentTag == "Description":
				descriptions = append(descriptions, text)
			case currentTag == "ResponseString":
				responseStrings = append(responseStrings, text)
			}
		}
	}

	if errCount == 0 {
		return nil
	}

	messages := make([]string, 0, len(errMessages)+len(descriptions)+len(responseStrings))
	messages = append(messages, errMessages...)
	messages = append(messages, descriptions...)
	messages = append(messages, responseStrings...)
	if len(messages) == 0 {
		// never report a failure with zero explanatory messages
		messages = []string{fmt.Sprintf("update endpoint reported %d errors but returned no error messages", errCount)}
	}
	return &UpdateError{Messages: messages}
}

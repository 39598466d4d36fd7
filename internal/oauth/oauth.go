// Package oauth obtains a personal API token through the forge's
// authorization-code flow, for running the nagger outside CI.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
)

const (
	clientID    = "bf556db1755e8c6d13aaef733dd66c5fdaf4380318ca3cac232230726094f384"
	redirectURL = "http://localhost:8000"
)

// Login walks the authorization-code flow: print the authorization URL,
// catch the redirect on localhost, exchange the code for a token. The
// returned access token is usable as the NAGGUS_KEY value.
func Login(ctx context.Context, baseURL string) (string, error) {
	conf := &oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURL,
		Scopes:      []string{"api"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  baseURL + "oauth/authorize",
			TokenURL: baseURL + "oauth/token",
		},
	}

	state, err := randomState()
	if err != nil {
		return "", err
	}

	fmt.Println("Please visit", conf.AuthCodeURL(state))
	code, err := waitForCode(ctx, state)
	if err != nil {
		return "", err
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchanging code for token: %w", err)
	}
	return token.AccessToken, nil
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// waitForCode runs a one-shot HTTP server on the redirect address until
// the browser delivers the code.
func waitForCode(ctx context.Context, state string) (string, error) {
	listen, err := url.Parse(redirectURL)
	if err != nil {
		return "", err
	}

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- result{err: fmt.Errorf("authorization state mismatch")}
			return
		}
		fmt.Fprintln(w, "OK, you can close this tab.")
		results <- result{code: code}
	})

	server := &http.Server{Addr: listen.Host, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			results <- result{err: err}
		}
	}()
	defer server.Close()

	select {
	case r := <-results:
		return r.code, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"

	"github.com/authkeel/authkeel/pkg/oidc"
)

// formPostTemplate auto-submits the response parameters back to the client,
// per OAuth 2.0 Form Post Response Mode.
var formPostTemplate = template.Must(template.New("form_post").Parse(`<!DOCTYPE html>
<html>
<head><title>Submit this form</title></head>
<body onload="document.forms[0].submit()">
<form method="post" action="{{.Action}}">
{{- range $name, $value := .Parameters}}
<input type="hidden" name="{{$name}}" value="{{$value}}"/>
{{- end}}
<noscript><button type="submit">Continue</button></noscript>
</form>
</body>
</html>
`))

// deliverParameters sends the parameters to redirectURI through the
// negotiated response mode. An empty or unknown mode falls back to query.
func deliverParameters(w http.ResponseWriter, r *http.Request, redirectURI, responseMode string, params map[string]string) error {
	switch responseMode {
	case oidc.ResponseModeFragment:
		values := url.Values{}
		for name, value := range params {
			values.Set(name, value)
		}
		http.Redirect(w, r, redirectURI+"#"+values.Encode(), http.StatusFound)
		return nil

	case oidc.ResponseModeFormPost:
		w.Header().Set("Content-Type", "text/html;charset=UTF-8")
		w.Header().Set("Cache-Control", "no-store")
		return formPostTemplate.Execute(w, struct {
			Action     string
			Parameters map[string]string
		}{Action: redirectURI, Parameters: params})

	default:
		target, err := url.Parse(redirectURI)
		if err != nil {
			return err
		}
		values := target.Query()
		for name, value := range params {
			values.Set(name, value)
		}
		target.RawQuery = values.Encode()
		http.Redirect(w, r, target.String(), http.StatusFound)
		return nil
	}
}

// deliverRequestError sends a client-visible refusal. Errors that carry no
// validated redirect URI must not leave the server; those are returned as a
// plain HTTP error instead.
func deliverRequestError(w http.ResponseWriter, r *http.Request, reqErr *oidc.RequestError, state string) error {
	if reqErr.RedirectURI == "" {
		writeJSONError(w, http.StatusBadRequest, reqErr.Code, reqErr.Description)
		return nil
	}

	params := map[string]string{"error": reqErr.Code}
	if reqErr.Description != "" {
		params["error_description"] = reqErr.Description
	}
	if state != "" {
		params["state"] = state
	}
	return deliverParameters(w, r, reqErr.RedirectURI, reqErr.ResponseMode, params)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

package flow

import (
	"context"
	"net/http"
)

// Logout signs the user out by following the discovered sign-out link.
// It assumes the session is authenticated; a missing link is terminal and
// causes no further requests.
type Logout struct{}

func (f *Logout) Name() string { return "logout" }

func (f *Logout) Run(ctx context.Context, v Visitor, x Extractor) Result {
	page, err := v.Visit(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return transportErr("initial page", err)
	}
	if !page.OK() {
		return badStatus("initial page", page)
	}

	// The sign-out link doubles as confirmation the session is actually
	// authenticated.
	href, ok := x.Attribute(page.Body, selSignOutLink, "href")
	if !ok || href == "" {
		return failure(ClassMissingToken, page,
			"no sign-out link at %s; no active session", page.URL)
	}

	page, err = v.Visit(ctx, http.MethodGet, href, nil)
	if err != nil {
		return transportErr("sign-out", err)
	}
	if !page.OK() {
		return badStatus("sign-out", page)
	}

	return success(page, "signed out")
}

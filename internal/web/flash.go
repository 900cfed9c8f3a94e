package web

import (
	"net/http"
	"net/url"
)

// SetFlash stores a one-shot message shown by the next rendered page.
func SetFlash(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   60,
	})
}

// Redirect sends a 303 to target, optionally carrying a flash message.
func Redirect(w http.ResponseWriter, r *http.Request, target, flash string) {
	if flash != "" {
		SetFlash(w, flash)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// popFlash returns the last flash cookie on the request and expires it.
func popFlash(w http.ResponseWriter, r *http.Request) string {
	var value string
	for _, c := range r.Cookies() {
		if c.Name == flashCookie {
			value = c.Value
		}
	}
	if value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1})
	msg, err := url.QueryUnescape(value)
	if err != nil {
		return ""
	}
	return msg
}

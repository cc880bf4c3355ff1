package www

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"github.com/gorilla/sessions"
)

const sessionName = "kitchenedge_display"

// bindingStore remembers which display a browser tab is bound to.
type bindingStore struct {
	store *sessions.CookieStore
}

func newBindingStore(secret string) *bindingStore {
	var key []byte
	if secret != "" {
		key, _ = base64.StdEncoding.DecodeString(secret)
	}
	if len(key) < 32 {
		key = make([]byte, 32)
		rand.Read(key)
	}
	cs := sessions.NewCookieStore(key)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &bindingStore{store: cs}
}

func (s *bindingStore) get(r *http.Request) *sessions.Session {
	sess, _ := s.store.Get(r, sessionName)
	return sess
}

func (s *bindingStore) display(r *http.Request) (string, bool) {
	d, ok := s.get(r).Values["display"].(string)
	return d, ok && d != ""
}

func (s *bindingStore) bind(w http.ResponseWriter, r *http.Request, display string) error {
	sess := s.get(r)
	sess.Values["display"] = display
	return sess.Save(r, w)
}

func (s *bindingStore) clear(w http.ResponseWriter, r *http.Request) error {
	sess := s.get(r)
	delete(sess.Values, "display")
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// Package cookies provides the "cookies" service: a jar that encrypts
// cookie values with the crypt service.
package cookies

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/GoCodeAlone/baseapp/modules/crypt"
)

// ErrTampered is returned when a cookie fails to decrypt.
var ErrTampered = errors.New("cookies: value failed authentication")

// Options apply to cookies written by the jar.
type Options struct {
	Path     string
	Domain   string
	MaxAge   time.Duration
	Secure   bool
	SameSite http.SameSite
}

// Jar reads and writes cookies. With a nil cipher values are stored in the clear.
type Jar struct {
	crypt *crypt.Crypt
	opts  Options
}

func New(c *crypt.Crypt, opts Options) *Jar {
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.SameSite == 0 {
		opts.SameSite = http.SameSiteLaxMode
	}
	return &Jar{crypt: c, opts: opts}
}

func (j *Jar) Encrypted() bool { return j.crypt != nil }

// Set writes name=value. The name is bound into the ciphertext, so a value
// cannot be replayed under another cookie name.
func (j *Jar) Set(w http.ResponseWriter, name, value string) error {
	encoded := value
	if j.crypt != nil {
		sealed, err := j.crypt.Encrypt([]byte(value), []byte(name))
		if err != nil {
			return err
		}
		encoded = base64.RawURLEncoding.EncodeToString(sealed)
	}
	c := &http.Cookie{
		Name:     name,
		Value:    encoded,
		Path:     j.opts.Path,
		Domain:   j.opts.Domain,
		Secure:   j.opts.Secure,
		HttpOnly: true,
		SameSite: j.opts.SameSite,
	}
	if j.opts.MaxAge > 0 {
		c.MaxAge = int(j.opts.MaxAge / time.Second)
	}
	http.SetCookie(w, c)
	return nil
}

// Get returns the decrypted value of name. A missing cookie is ("", false, nil).
func (j *Jar) Get(r *http.Request, name string) (string, bool, error) {
	c, err := r.Cookie(name)
	if errors.Is(err, http.ErrNoCookie) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if j.crypt == nil {
		return c.Value, true, nil
	}
	sealed, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return "", false, ErrTampered
	}
	plain, err := j.crypt.Decrypt(sealed, []byte(name))
	if err != nil {
		return "", false, ErrTampered
	}
	return string(plain), true, nil
}

func (j *Jar) Has(r *http.Request, name string) bool {
	_, err := r.Cookie(name)
	return err == nil
}

// Delete expires name in the browser.
func (j *Jar) Delete(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: j.opts.Path, Domain: j.opts.Domain, MaxAge: -1})
}

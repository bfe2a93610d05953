// Package tokens resolves the token values of one generator run.
package tokens

import (
	"sort"
	"strings"
	"unicode"

	"github.com/phovea/generator-phovea/internal/errors"
	"github.com/phovea/generator-phovea/internal/kinds"
)

// Context maps token names, including derived variants, to values.
type Context map[string]string

// Names returns the sorted token names in the context.
func (c Context) Names() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// illegalChars may not appear in a value because values name files and
// directories.
const illegalChars = `/\:*?"<>|`

// Resolve validates raw values against the kind's token declarations and
// returns the full context. Raw values are trimmed; names the kind does not
// declare are ignored.
func Resolve(k *kinds.Kind, raw map[string]string) (Context, error) {
	values := make(map[string]string, len(k.Required)+len(k.Optional))
	var missing []string

	for _, name := range k.Required {
		v := strings.TrimSpace(raw[name])
		if v == "" {
			missing = append(missing, name)
			continue
		}
		values[name] = v
	}
	for _, opt := range k.Optional {
		v := strings.TrimSpace(raw[opt.Name])
		if v == "" {
			v = opt.Default
		}
		if v == "" {
			missing = append(missing, opt.Name)
			continue
		}
		values[opt.Name] = v
	}

	if len(missing) > 0 {
		return nil, errors.Newf(errors.ErrMissingToken, "kind %s: missing value for %s", k.ID, strings.Join(missing, ", ")).
			WithDetail("kind", k.ID).
			WithDetail("tokens", missing)
	}

	ctx := make(Context, len(values)*(len(Variants)+1))
	for _, name := range k.TokenNames() {
		v := values[name]
		if err := ValidateValue(v); err != nil {
			return nil, errors.Wrapf(err, errors.ErrInvalidToken, "kind %s: token %s", k.ID, name).
				WithDetail("token", name).
				WithDetail("value", v)
		}
		for n, dv := range Derive(name, v) {
			ctx[n] = dv
		}
	}
	return ctx, nil
}

// Derive returns the token itself and its derived variants. It is pure:
// the same name and value always give the same result.
func Derive(name, value string) map[string]string {
	words := Words(value)
	out := make(map[string]string, len(Variants)+1)
	out[name] = value
	for _, v := range Variants {
		out[name+v.Suffix] = v.Derive(words)
	}
	return out
}

// Guaranteed returns every token name Resolve produces for k on success.
func Guaranteed(k *kinds.Kind) []string {
	var names []string
	for _, name := range k.TokenNames() {
		names = append(names, name)
		for _, v := range Variants {
			names = append(names, name+v.Suffix)
		}
	}
	sort.Strings(names)
	return names
}

// ValidateValue reports whether v can be used as a file path segment.
func ValidateValue(v string) error {
	if v == "." || v == ".." {
		return errors.Newf(errors.ErrInvalidToken, "%q is not a valid name", v)
	}
	hasWord := false
	for _, r := range v {
		if strings.ContainsRune(illegalChars, r) {
			return errors.Newf(errors.ErrInvalidToken, "%q contains %q", v, r)
		}
		if unicode.IsControl(r) {
			return errors.Newf(errors.ErrInvalidToken, "%q contains a control character", v)
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			hasWord = true
		}
	}
	if !hasWord {
		return errors.Newf(errors.ErrInvalidToken, "%q has no letters or digits", v)
	}
	return nil
}

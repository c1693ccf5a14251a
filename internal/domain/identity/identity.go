// Package identity derives the business key and content fingerprint of a
// normalized record.
package identity

import (
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/okian/xsrledger/internal/domain/model"
)

// keySeparator joins key field values.
const keySeparator = "_"

// Getter exposes record fields by name.
type Getter interface {
	Get(key string) (any, bool)
}

// Hash returns the lowercase hex SHA-512 digest of s.
func Hash(s string) string {
	return HashBytes([]byte(s))
}

// HashBytes returns the lowercase hex SHA-512 digest of b.
func HashBytes(b []byte) string {
	sum := sha512.Sum512(b)
	return hex.EncodeToString(sum[:])
}

// ComputeKey joins the values of fields with "_" and hashes the result.
// A missing or falsy field fails with a *MissingFieldError.
func ComputeKey(rec Getter, fields []string) (model.IdentityKey, error) {
	if len(fields) == 0 {
		return model.IdentityKey{}, ErrNoKeyFields
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		v, ok := rec.Get(f)
		if !ok || falsy(v) {
			return model.IdentityKey{}, &MissingFieldError{Field: f}
		}
		parts = append(parts, render(v))
	}
	kv := strings.Join(parts, keySeparator)
	return model.IdentityKey{KeyValue: kv, KeyValueHash: Hash(kv)}, nil
}

// Canonical serializes rec as JSON with sorted keys, the form that is hashed
// and stored.
func Canonical(rec *model.NormalizedRecord) ([]byte, error) {
	b, err := json.Marshal(rec.Map())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnhashable, err)
	}
	return b, nil
}

// ContentHash fingerprints the full record. It returns the canonical bytes
// alongside so callers do not serialize twice.
func ContentHash(rec *model.NormalizedRecord) (string, []byte, error) {
	b, err := Canonical(rec)
	if err != nil {
		return "", nil, err
	}
	return HashBytes(b), b, nil
}

func falsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func render(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

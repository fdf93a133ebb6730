// Package canonical produces a single deterministic byte representation of a
// report so that logically equal reports always hash to the same fingerprint.
//
// The rules are fixed:
//   - object keys are sorted bytewise at every depth
//   - array elements are sorted by their own canonical encoding, so arrays are
//     compared as multisets
//   - no whitespace; "," and ":" are the only separators
//   - numbers are written in shortest plain decimal form without exponent or
//     trailing zeros (1.50, 1.5e0 and 15e-1 all become 1.5); NaN and ±Inf are rejected,
//     as are decimal literals longer than 64 bytes or with an exponent beyond ±400
//   - strings use JSON escaping without HTML escaping
package canonical

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"

	"github.com/de-tools/report-ledger/pkg/models/domain"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// ErrSerialization matches every SerializationError via errors.Is.
var ErrSerialization = errors.New("serialization error")

// SerializationError reports a value that has no canonical form.
type SerializationError struct {
	Path   string
	Reason string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("cannot canonicalize %s: %s", e.Path, e.Reason)
}

func (e *SerializationError) Is(target error) bool {
	return target == ErrSerialization
}

var numberType = reflect.TypeOf(json.Number(""))

// Canonicalize renders the report as canonical JSON using the field names of
// the public API.
func Canonicalize(report domain.Report) (string, error) {
	orders := report.Orders
	if orders == nil {
		orders = []map[string]interface{}{}
	}

	doc := map[string]interface{}{
		"startDate":      report.Period.Start,
		"endDate":        report.Period.End,
		"totalRevenue":   report.Metrics.TotalRevenue,
		"totalOrders":    report.Metrics.TotalOrders,
		"avgOrderValue":  report.Metrics.AvgOrderValue,
		"completionRate": report.Metrics.CompletionRate,
		"orders":         orders,
	}

	b, err := Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Fingerprint returns the 0x-prefixed keccak256 of a canonical string, the
// same digest the ledger contract computes over the recorded string.
func Fingerprint(canonical string) string {
	return crypto.Keccak256Hash([]byte(canonical)).Hex()
}

// Marshal canonically encodes v. Supported values are nil, booleans, strings,
// json.Number, integer and float kinds, string-keyed maps, slices, arrays and
// pointers or interfaces holding them.
func Marshal(v interface{}) ([]byte, error) {
	e := &encoder{onPath: make(map[uintptr]struct{})}
	return e.encode(reflect.ValueOf(v), "$")
}

type encoder struct {
	onPath map[uintptr]struct{}
}

func (e *encoder) enter(ptr uintptr, path string) (func(), error) {
	if _, ok := e.onPath[ptr]; ok {
		return nil, &SerializationError{Path: path, Reason: "cyclic structure"}
	}
	e.onPath[ptr] = struct{}{}
	return func() { delete(e.onPath, ptr) }, nil
}

func (e *encoder) encode(v reflect.Value, path string) ([]byte, error) {
	if !v.IsValid() {
		return []byte("null"), nil
	}
	if v.Type() == numberType {
		return formatNumber(v.String(), path)
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return []byte("null"), nil
		}
		return e.encode(v.Elem(), path)
	case reflect.Pointer:
		if v.IsNil() {
			return []byte("null"), nil
		}
		leave, err := e.enter(v.Pointer(), path)
		if err != nil {
			return nil, err
		}
		defer leave()
		return e.encode(v.Elem(), path)
	case reflect.Bool:
		return []byte(strconv.FormatBool(v.Bool())), nil
	case reflect.String:
		return encodeString(v.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return []byte(strconv.FormatInt(v.Int(), 10)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return []byte(strconv.FormatUint(v.Uint(), 10)), nil
	case reflect.Float32:
		return formatFloat(v.Float(), true, path)
	case reflect.Float64:
		return formatFloat(v.Float(), false, path)
	case reflect.Map:
		return e.encodeMap(v, path)
	case reflect.Slice:
		if v.IsNil() {
			return []byte("[]"), nil
		}
		if v.Len() > 0 {
			leave, err := e.enter(v.Pointer(), path)
			if err != nil {
				return nil, err
			}
			defer leave()
		}
		return e.encodeList(v, path)
	case reflect.Array:
		return e.encodeList(v, path)
	default:
		return nil, &SerializationError{Path: path, Reason: fmt.Sprintf("unsupported type %s", v.Type())}
	}
}

func (e *encoder) encodeMap(v reflect.Value, path string) ([]byte, error) {
	if v.Type().Key().Kind() != reflect.String {
		return nil, &SerializationError{Path: path, Reason: fmt.Sprintf("map key type %s is not a string", v.Type().Key())}
	}
	if v.IsNil() {
		return []byte("null"), nil
	}
	leave, err := e.enter(v.Pointer(), path)
	if err != nil {
		return nil, err
	}
	defer leave()

	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := encodeString(k.String())
		if err != nil {
			return nil, err
		}
		vb, err := e.encode(v.MapIndex(k), path+"."+k.String())
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (e *encoder) encodeList(v reflect.Value, path string) ([]byte, error) {
	items := make([][]byte, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		b, err := e.encode(v.Index(i), fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	sort.Slice(items, func(i, j int) bool { return bytes.Compare(items[i], items[j]) < 0 })

	var buf bytes.Buffer
	buf.WriteByte('[')
	buf.Write(bytes.Join(items, []byte{','}))
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func encodeString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func formatFloat(f float64, single bool, path string) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &SerializationError{Path: path, Reason: fmt.Sprintf("non-finite number %v", f)}
	}
	if single {
		return []byte(decimal.NewFromFloat32(float32(f)).String()), nil
	}
	return []byte(decimal.NewFromFloat(f).String()), nil
}

const (
	maxNumberLen      = 64
	maxNumberExponent = 400
)

// formatNumber bounds the plain decimal expansion before producing it.
func formatNumber(s string, path string) ([]byte, error) {
	if len(s) > maxNumberLen {
		return nil, &SerializationError{Path: path, Reason: fmt.Sprintf("number literal longer than %d bytes", maxNumberLen)}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, &SerializationError{Path: path, Reason: fmt.Sprintf("invalid number %q", s)}
	}
	if exp := int64(d.Exponent()); exp > maxNumberExponent || exp < -maxNumberExponent {
		return nil, &SerializationError{Path: path, Reason: fmt.Sprintf("number %q is out of range", s)}
	}
	return []byte(d.String()), nil
}

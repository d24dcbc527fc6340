// Package vectorstore adapts the dense-vector index (VS-PR, VS-File) to a
// Qdrant-compatible backend: collection lifecycle, vector validation, and
// scalar+ANN query execution behind a small filter combinator form rather
// than ad-hoc string building (spec §9 REDESIGN FLAGS).
package vectorstore

import (
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// Expr is a scalar filter expression, rendered once at the adapter
// boundary with quoting centralized here rather than at every call site.
type Expr interface {
	render() string
	condition() *qdrant.Condition
}

type eqExpr struct {
	field string
	value interface{}
}

// Eq builds `field == value`.
func Eq(field string, value interface{}) Expr { return eqExpr{field, value} }

func (e eqExpr) render() string {
	return fmt.Sprintf("%s == %s", e.field, renderValue(e.value))
}

func (e eqExpr) condition() *qdrant.Condition {
	switch val := e.value.(type) {
	case string:
		return qdrant.NewMatch(e.field, val)
	case bool:
		return qdrant.NewMatchBool(e.field, val)
	case int:
		return qdrant.NewMatchInt(e.field, int64(val))
	case int64:
		return qdrant.NewMatchInt(e.field, val)
	default:
		return qdrant.NewMatch(e.field, fmt.Sprintf("%v", val))
	}
}

type cmpExpr struct {
	field string
	op    string
	value interface{}
}

// GTE builds `field >= value`.
func GTE(field string, value interface{}) Expr { return cmpExpr{field, ">=", value} }

// LTE builds `field <= value`.
func LTE(field string, value interface{}) Expr { return cmpExpr{field, "<=", value} }

func (e cmpExpr) render() string {
	return fmt.Sprintf("%s %s %s", e.field, e.op, renderValue(e.value))
}

func (e cmpExpr) condition() *qdrant.Condition {
	f := toFloat64(e.value)
	r := &qdrant.Range{}
	if e.op == ">=" {
		r.Gte = &f
	} else {
		r.Lte = &f
	}
	return qdrant.NewRange(e.field, r)
}

func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	default:
		return 0
	}
}

type andExpr struct{ parts []Expr }

// And conjoins expressions with `and`.
func And(parts ...Expr) Expr { return andExpr{parts} }

func (e andExpr) render() string {
	rendered := make([]string, len(e.parts))
	for i, p := range e.parts {
		rendered[i] = p.render()
	}
	return strings.Join(rendered, " and ")
}

func (e andExpr) condition() *qdrant.Condition {
	conds := make([]*qdrant.Condition, len(e.parts))
	for i, p := range e.parts {
		conds[i] = p.condition()
	}
	return qdrant.NewFilterAsCondition(&qdrant.Filter{Must: conds})
}

type inExpr struct {
	field  string
	values []interface{}
}

// In builds a disjunction of equalities over values (there is no native
// `in` operator in the adapter's scalar language, so it expands to ORs
// wrapped in parens, matching the combinator form's "render once" rule).
func In(field string, values ...interface{}) Expr { return inExpr{field, values} }

func (e inExpr) render() string {
	parts := make([]string, len(e.values))
	for i, v := range e.values {
		parts[i] = fmt.Sprintf("%s == %s", e.field, renderValue(v))
	}
	return "(" + strings.Join(parts, " or ") + ")"
}

func (e inExpr) condition() *qdrant.Condition {
	strs := make([]string, 0, len(e.values))
	for _, v := range e.values {
		if s, ok := v.(string); ok {
			strs = append(strs, s)
		}
	}
	if len(strs) == len(e.values) {
		return qdrant.NewMatchKeywords(e.field, strs...)
	}
	conds := make([]*qdrant.Condition, len(e.values))
	for i, v := range e.values {
		conds[i] = eqExpr{e.field, v}.condition()
	}
	return qdrant.NewFilterAsCondition(&qdrant.Filter{Should: conds})
}

// Between is syntactic sugar for GTE(field, lo) and LTE(field, hi).
func Between(field string, lo, hi interface{}) Expr {
	return And(GTE(field, lo), LTE(field, hi))
}

type likeExpr struct {
	field   string
	pattern string
}

// Like builds `field like "pattern"`, escaping embedded quotes.
func Like(field, pattern string) Expr { return likeExpr{field, pattern} }

func (e likeExpr) render() string {
	return fmt.Sprintf("%s like %q", e.field, escapeQuotes(e.pattern))
}

func (e likeExpr) condition() *qdrant.Condition {
	return qdrant.NewMatchText(e.field, strings.Trim(e.pattern, "%"))
}

func renderValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", escapeQuotes(val))
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// Render renders an Expr to its wire string form. nil renders to "".
func Render(e Expr) string {
	if e == nil {
		return ""
	}
	return e.render()
}

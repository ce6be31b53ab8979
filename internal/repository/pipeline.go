package repository

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blogsphere/internal/models"
)

// Logical post fields a stage may reference.
const (
	FieldID          = "_id"
	FieldAuthor      = "author"
	FieldCreatedDate = "createdDate"
)

var postColumns = map[string]string{
	FieldID:          "posts.id",
	FieldAuthor:      "posts.author_id",
	FieldCreatedDate: "posts.created_at",
}

// StageKind identifies what a Stage does to the post query.
type StageKind int

const (
	StageMatch StageKind = iota
	StageMatchIn
	StageSort
	StageTextSearch
	StageTextScoreSort
)

func (k StageKind) String() string {
	switch k {
	case StageMatch:
		return "match"
	case StageMatchIn:
		return "matchIn"
	case StageSort:
		return "sort"
	case StageTextSearch:
		return "textSearch"
	case StageTextScoreSort:
		return "textScoreSort"
	default:
		return fmt.Sprintf("stage(%d)", int(k))
	}
}

// Stage is one declarative step of a post pipeline. Pipelines are plain
// slices of stages, built by callers and compiled by the aggregator.
type Stage struct {
	Kind       StageKind
	Field      string
	Value      any
	Descending bool
}

// Match keeps posts whose field equals value.
func Match(field string, value any) Stage {
	return Stage{Kind: StageMatch, Field: field, Value: value}
}

// MatchIn keeps posts whose field is one of values (a slice).
func MatchIn(field string, values any) Stage {
	return Stage{Kind: StageMatchIn, Field: field, Value: values}
}

// Sort orders posts by field.
func Sort(field string, descending bool) Stage {
	return Stage{Kind: StageSort, Field: field, Descending: descending}
}

// TextSearch keeps posts whose title or body matches term.
func TextSearch(term string) Stage {
	return Stage{Kind: StageTextSearch, Value: term}
}

// SortByTextScore orders posts by relevance to term, best first.
func SortByTextScore(term string) Stage {
	return Stage{Kind: StageTextScoreSort, Value: term, Descending: true}
}

// Pipeline is an ordered list of stages.
type Pipeline []Stage

// Validate rejects unknown stage kinds and fields before a query is built.
func (p Pipeline) Validate() error {
	for _, st := range p {
		switch st.Kind {
		case StageMatch, StageMatchIn, StageSort:
			if _, ok := postColumns[st.Field]; !ok {
				return models.NewInvalidInputError(fmt.Sprintf("unknown field %q in %s stage", st.Field, st.Kind))
			}
		case StageTextSearch, StageTextScoreSort:
			if _, ok := st.Value.(string); !ok {
				return models.NewInvalidInputError(fmt.Sprintf("%s stage needs a string term", st.Kind))
			}
		default:
			return models.NewInvalidInputError(fmt.Sprintf("unsupported %s", st.Kind))
		}
	}
	return nil
}

// apply compiles the stages onto q. Validate must have passed. Ordering
// stages are collected into a single ORDER BY in pipeline order.
func (p Pipeline) apply(q *gorm.DB) *gorm.DB {
	dialect := q.Dialector.Name()
	var orders []string
	var orderVars []any
	for _, st := range p {
		switch st.Kind {
		case StageMatch:
			q = q.Where(postColumns[st.Field]+" = ?", st.Value)
		case StageMatchIn:
			q = q.Where(postColumns[st.Field]+" IN ?", st.Value)
		case StageSort:
			dir := " ASC"
			if st.Descending {
				dir = " DESC"
			}
			orders = append(orders, postColumns[st.Field]+dir)
		case StageTextSearch:
			q = textMatch(q, dialect, st.Value.(string))
		case StageTextScoreSort:
			if sql, vars := textScore(dialect, st.Value.(string)); sql != "" {
				orders = append(orders, sql+" DESC")
				orderVars = append(orderVars, vars...)
			}
		}
	}
	if len(orders) > 0 {
		q = q.Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                strings.Join(orders, ", "),
			Vars:               orderVars,
			WithoutParentheses: true,
		}})
	}
	return q
}

const searchDocument = "to_tsvector('english', posts.title || ' ' || posts.body)"

// textMatch uses Postgres full-text search; other dialects fall back to a
// case-insensitive substring match on any word of the term.
func textMatch(q *gorm.DB, dialect, term string) *gorm.DB {
	if dialect == "postgres" {
		return q.Where(searchDocument+" @@ plainto_tsquery('english', ?)", term)
	}

	words := strings.Fields(term)
	if len(words) == 0 {
		return q.Where("1 = 0")
	}
	conds := make([]string, 0, len(words))
	args := make([]any, 0, 2*len(words))
	for _, w := range words {
		like := "%" + escapeLike(w) + "%"
		conds = append(conds, `posts.title LIKE ? ESCAPE '\' OR posts.body LIKE ? ESCAPE '\'`)
		args = append(args, like, like)
	}
	return q.Where("("+strings.Join(conds, " OR ")+")", args...)
}

// textScore returns the relevance expression for term. Title hits weigh
// double outside Postgres.
func textScore(dialect, term string) (string, []any) {
	if dialect == "postgres" {
		return "ts_rank(" + searchDocument + ", plainto_tsquery('english', ?))", []any{term}
	}

	words := strings.Fields(term)
	if len(words) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(words))
	vars := make([]any, 0, 2*len(words))
	for _, w := range words {
		like := "%" + escapeLike(w) + "%"
		parts = append(parts, `CASE WHEN posts.title LIKE ? ESCAPE '\' THEN 2 ELSE 0 END + CASE WHEN posts.body LIKE ? ESCAPE '\' THEN 1 ELSE 0 END`)
		vars = append(vars, like, like)
	}
	return "(" + strings.Join(parts, " + ") + ")", vars
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
